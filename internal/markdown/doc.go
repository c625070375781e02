// Package markdown buffers streamed model output and decides when a piece of it
// can be rendered on its own.
//
// Flush points are logical markdown boundaries:
//   - a blank line flushes everything accumulated, the blank line included
//   - a heading is flushed alone, after any prior text
//   - a fenced code block is flushed whole, once its closing delimiter arrives
//   - list items and prose accumulate until one of the above resolves them
//
// Invariant: nothing is flushed from inside an open fence except by Finalize.
package markdown
