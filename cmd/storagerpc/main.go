// Command storagerpc loads, inspects and serves storage serialization
// policies.
//
// Usage:
//
//	# Check a policy file
//	storagerpc lint --file war/app1/StorageSerializerPolicy.gwt.rpc
//
//	# Show the types a policy file permits
//	storagerpc inspect --file war/app1/StorageSerializerPolicy.gwt.rpc
//
//	# Load every configured module and report the cache
//	storagerpc load --config storagerpc.yaml
//
//	# Show which policy a namespace would serialize under
//	storagerpc resolve --config storagerpc.yaml --namespace app2
//
//	# Keep policies loaded, reload on change, expose /metrics
//	storagerpc run --config storagerpc.yaml
package main

func main() {
	Execute()
}
