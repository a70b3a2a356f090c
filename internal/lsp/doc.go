// Package lsp is the language server client.
//
// A Connection owns one server process and speaks JSON-RPC to it over
// Content-Length framed stdio. It implements engine.Synchronizer, so a
// document attached to it is opened on the server once the initialize
// handshake completes and every committed batch of changes becomes one
// textDocument/didChange notification.
//
// Each connection is polled on its own goroutine. A poll reads whatever
// the process has written without blocking, decodes complete frames, and
// dispatches them while holding the Host lock, which is the same lock the
// editor holds while it processes input:
//
//	registry := lsp.NewRegistry(cfg, editor)
//	conn, err := registry.Connect("go")
//	if err != nil {
//	    return err
//	}
//	doc.Attach(conn)
//	...
//	registry.Shutdown(ctx)
//
// Requests such as Hover and Definition return immediately with the
// request id; their decoded results arrive through Host.HandleResult.
package lsp
