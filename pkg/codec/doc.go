/*
Package codec provides the default wire codecs of the Canopy runtime.

The JSON decoder reads one JSON object per response: each key is a slot identifier
and each value an opaque subtree. Any object of the form

	{"$call": "file#name", "args": [...]}

found anywhere in the tree is a nested remote call request: the decoder invokes
DecodeOptions.OnRemoteCall and substitutes the returned value in place.

The multipart encoder serializes remote-call arguments for POST requests; DecodeArgs
is its server-side inverse.
*/
package codec
