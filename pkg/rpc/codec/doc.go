// Package codec implements the storage RPC wire format.
//
// Values are written as a JSON envelope that names the encoded type:
//
//	{"v":1,"t":"example.com/notes.Note","p":{"Title":"groceries","Body":"milk"}}
//
// Every named or struct type reached while walking a value is checked against
// the policy passed to Encode or Decode. Interface-typed values carry their
// dynamic type explicitly ({"t":...,"p":...}); on decode that type must be
// registered in the codec's TypeRegistry, assignable to the interface and
// permitted by the policy. Nothing else in the input can select a Go type.
//
// Struct fields are the exported fields of the struct. A `storage:"name"` tag
// renames a field and `storage:"-"` skips it. When the policy declares client
// fields for a type, only those fields are exchanged and any other field in
// decoded input is rejected.
package codec
