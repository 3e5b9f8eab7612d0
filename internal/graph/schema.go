// Package graph serves the GraphQL API: schema, resolvers and the HTTP handler.
package graph

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	graphql "github.com/graph-gophers/graphql-go"
)

var (
	//go:embed schema/root.graphql
	rootTypeDefs string
	//go:embed schema/auth.graphql
	authTypeDefs string
	//go:embed schema/admin.graphql
	adminTypeDefs string
	//go:embed schema/instructor.graphql
	instructorTypeDefs string
	//go:embed schema/course.graphql
	courseTypeDefs string
	//go:embed schema/systemlog.graphql
	systemLogTypeDefs string
)

// typeDefs is the complete list of schema documents, in registration order.
// Adding a schema file means adding it here.
var typeDefs = []string{
	rootTypeDefs,
	authTypeDefs,
	adminTypeDefs,
	instructorTypeDefs,
	courseTypeDefs,
	systemLogTypeDefs,
}

// SchemaString returns the assembled schema document.
func SchemaString() string {
	return strings.Join(typeDefs, "\n")
}

// panicLogger routes resolver panics to slog.
type panicLogger struct{}

func (panicLogger) LogPanic(ctx context.Context, value interface{}) {
	slog.ErrorContext(ctx, "graphql resolver panic", "panic", value)
}

// NewSchema parses the schema and binds it to r.
func NewSchema(r *Resolver) (*graphql.Schema, error) {
	schema, err := graphql.ParseSchema(SchemaString(), r,
		graphql.MaxDepth(12),
		graphql.Logger(panicLogger{}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse graphql schema: %w", err)
	}
	return schema, nil
}
