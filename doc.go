// Package linqlens provides completion and hover for C# LINQ query snippets
// typed against an Entity Framework style context, without a C# compiler. It
// is built on tree-sitter: declarations are extracted into an in-memory
// SQLite catalog, and the snippet is bound against that catalog.
//
// # Pipeline
//
// A Session operates in two phases:
//
//  1. Initialize: parse the model sources and the context source, extract
//     their types, members, parameters, base types and XML documentation,
//     and write them next to the embedded prelude (the BCL, LINQ and Entity
//     Framework surface a query needs).
//
//  2. Analyze: for each request, wrap the snippet in a method whose only
//     parameter is the context, parse the wrapped document, and bind the
//     node at the cursor.
//
// # Usage
//
// Create a Session, initialize it, and ask for completions or hover:
//
//	s, err := linqlens.New("ShopContext", "Shop.Data")
//	if err != nil { ... }
//	defer s.Close()
//
//	ctx := context.Background()
//	err = s.Initialize(ctx, map[string]string{"Order": orderSource}, contextSource)
//
//	items, err := s.GetCompletions(ctx, "context.Orders.", 15)
//	hover, err := s.GetHover(ctx, "context.Orders.Where(o => o.Total > 10)", 16)
//
// [NewStarterSession] returns a session initialized with a small Person
// model and TestDbContext, which is handy for trying things out.
//
// # Offsets
//
// Cursors, replacement ranges and hover spans are byte offsets into the
// snippet as the caller passed it. Cursors outside the snippet are clamped.
//
// # Hover
//
// [Session.GetHover] tries a fixed ladder of resolvers and reports the one
// that succeeded in [HoverResult.Resolver]:
//
//   - [ResolverDirect]: the symbol the node under the cursor binds to.
//   - [ResolverEnclosingInvocation]: inside a call's arguments, the method
//     being called. A lambda parameter inside Where(...) shows Where.
//   - [ResolverDirectFallback]: the direct binding when the call does not
//     resolve.
//   - [ResolverExtensionMethod]: a method of that name whose first parameter
//     fits the receiver's type.
//   - [ResolverScopedMethod]: a method of that name in scope.
//   - [ResolverStaticType]: the type of the expression.
//
// # Concurrency
//
// A Session serializes its operations through a gate that honors context
// cancellation. [Session.Close] waits for the operation in flight and makes
// every later call return [ErrClosed].
//
// # Query API
//
// The [QueryBuilder] returned by [Session.Query] lists the declarations a
// session knows about, with filtering, glob search and pagination.
package linqlens
