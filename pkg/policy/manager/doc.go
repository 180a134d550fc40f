// Package manager loads serialization policies per module namespace and
// keeps them in a concurrent cache.
//
// # Core Components
//
// PolicyCache maps namespaces to policies plus a reserved default slot
// (DefaultNamespace). Lookups of a blank namespace resolve to the default.
//
// PolicyLoader reads "/<namespace>/StorageSerializerPolicy.gwt.rpc" through
// a ResourceOpener, parses it and registers it in the cache.
//
// DefaultPolicyManager drives the loader for the configured modules and
// keeps them fresh with a FileWatcher (fsnotify) and a RefreshScheduler
// (cron).
//
// # Default Policy Selection
//
// Put overwrites the default slot when asked to, and also when the cache
// is empty: the very first policy registered becomes the default even with
// markDefault unset. Loading app1 then app2 without flags leaves app1 as
// the default; loading app2 later with markDefault moves it to app2.
// The default slot therefore always holds a policy that was registered
// under a namespace, and Put ignores blank or reserved namespaces.
//
// Promotion is idempotent. LoadFromResource with markDefault set does not
// reload a namespace whose policy already occupies the default slot.
//
// # Error Reporting
//
// LoadFromResource never returns errors; missing resources, read failures
// and malformed policies are logged and leave the cache unchanged.
// LoadFromStream and Reload return *ParseError or *LoadError, and a missing
// resource surfaces as *ResourceMissingError, which matches fs.ErrNotExist.
//
// # Basic Usage
//
//	cache := manager.NewPolicyCache()
//	loader := manager.NewPolicyLoader(cache, nil, logger)
//	opener := manager.DirOpener("/srv/war")
//
//	loader.LoadFromResource(opener, "app1", true)
//	loader.Load(opener, "app2", "app3")
//
//	p, ok := cache.Get("app2")
//
// # Hot Reload
//
//	mgr, err := manager.NewPolicyManager(&cfg.Policy, cache, logger)
//	if err != nil {
//	    return err
//	}
//	mgr.LoadPolicies()
//	go mgr.Watch(ctx)
//	_ = mgr.StartRefresh(ctx)
//	defer mgr.Close()
//
// # Thread Safety
//
// All exported types are safe for concurrent use. The cache lock is never
// held during I/O or parsing, so a slow resource cannot block lookups.
package manager
