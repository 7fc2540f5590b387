package mysqlstore

import (
	"regexp"
	"strings"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
)

// quoteIdentifier quotes a MySQL identifier with backticks, doubling any
// embedded backtick.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Database and table names come from callers, so only plain identifiers
// are accepted on top of quoting.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

func isValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// tableName returns the quoted `db`.`table` for ns.
func tableName(ns store.Namespace) (string, error) {
	if !isValidIdentifier(ns.Database) {
		return "", apperr.Invalid("db_name", "%q is not a valid MySQL schema name (letters, digits and underscores only)", ns.Database)
	}
	if !isValidIdentifier(ns.Collection) {
		return "", apperr.Invalid("collection_name", "%q is not a valid MySQL table name (letters, digits and underscores only)", ns.Collection)
	}
	return quoteIdentifier(ns.Database) + "." + quoteIdentifier(ns.Collection), nil
}
