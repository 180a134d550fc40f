// Package policy models serialization policies: descriptions of which types
// may cross the storage RPC boundary and which of their fields are encoded.
//
// Two implementations of Policy are provided:
//
//   - FilePolicy is parsed from a generated policy file (StorageSerializerPolicy.gwt.rpc)
//     and permits exactly the types listed in it.
//   - Legacy is the platform fallback used when no namespace policy has been
//     registered. It permits primitives, time.Time, []byte and any type
//     implementing Serializable.
//
// # Policy File Format
//
// Policy files are line oriented. Blank lines and lines starting with '#'
// are ignored. Directives start with '@':
//
//	@FinalFields, true
//	@ClientFields,example.com/notes.Note,Title,Body
//
// Every other line describes one type:
//
//	typeName, serializable, instantiable[, deserializable, deserializableInstantiable[, typeId[, signature]]]
//
// For example:
//
//	example.com/notes.Note, true, true, true, true, example.com/notes.Note/3120954112, 3120954112
//	time.Time, true, true, true, true
//
// Policies are immutable once parsed and safe for concurrent use.
package policy
