// Package netbuf provides chained, pooled byte buffers for the inbound
// data path.
//
// The transport layer delivers inbound data as a forward-linked chain of
// Buf segments. The receive pipeline owns forward traversal only: a Buf
// handed to a decoder is first detached from its neighbors, so decoders
// never observe chain topology. Split supports carving a remainder out
// of a buffer that turned out to hold more than one protocol message.
//
// Buffers obtained from a Pool are recycled on Free; standalone buffers
// created with New are garbage collected normally. After Free a Buf must
// not be used.
package netbuf
