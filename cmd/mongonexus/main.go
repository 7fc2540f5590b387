package main

import "github.com/IngaleChinmay04/MongoNexus/cmd/mongonexus/cmd"

func main() {
	cmd.Execute()
}
