// Package serializer is the entry point for encoding and decoding storage
// values. It picks the serialization policy for a namespace from a
// PolicySource (normally a *manager.PolicyCache) and hands the value to a
// codec.Codec.
//
// A namespace uses its own policy when one is loaded and the configured
// fallback (policy.Legacy() unless configured otherwise) when not. Only a
// blank namespace resolves to the default policy.
//
// Null values short-circuit: serializing a nil value yields "" and
// deserializing "" yields nil, in both cases without touching the codec.
//
//	s := serializer.New(cache)
//	enc, err := serializer.Serialize(s, note, "app1")
//	...
//	note, err := serializer.Deserialize[*Note](s, enc, "app1")
package serializer
