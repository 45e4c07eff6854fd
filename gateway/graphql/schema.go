package graphql

import (
	"net/http"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// schemaSDL is the namespace query schema. Entry unifies objects and
// directories; directory entries have a null id, type and version.
const schemaSDL = `
type Query {
  "Resolve one object by id or full path."
  object(target: String!): Entry

  "List the entries directly inside a directory."
  objects(path: String!): [Entry!]!

  "Find objects whose field matches value under the given operator."
  search(field: String!, operator: String = "eq", value: String!): [Entry!]!

  "Current namespace size."
  stats: Stats!
}

type Entry {
  id: String
  name: String!
  path: String!
  kind: String!
  type: String
  version: String
  size: Int!
  perms: String
  created: String
  modified: String
}

type Stats {
  objects: Int!
  directories: Int!
}
`

var schema = gqlparser.MustLoadSchema(&ast.Source{
	Name:  "emerge.graphql",
	Input: schemaSDL,
})

// Playground returns the interactive GraphQL UI handler.
func Playground() http.Handler {
	return playground.Handler("emerge", "/graphql")
}
