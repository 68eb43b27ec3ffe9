// Package accessory is the bridge's host-side object model.
//
// An Accessory is a fixed, ordered list of Services. Each Service carries
// named characteristics which are either static values (manufacturer, model)
// or backed by handlers registered explicitly in the service's dispatch table:
//
//	sw := accessory.NewService(accessory.Switch, "Desk Lamp")
//	sw.OnGet(accessory.On, adapter.HandleGet)
//	sw.OnSet(accessory.On, adapter.SetOn)
//
// Host bindings (HomeKit, MQTT, HTTP) only ever talk to an Accessory through
// Service.Get and Service.Set, so every binding shares the same handlers,
// error semantics and metrics.
//
// # Registry
//
// Accessory implementations register a Factory under a type name. The
// process builds its single configured accessory by looking the configured
// type up in the Registry:
//
//	reg := accessory.NewRegistry()
//	reg.Register("MiSmartPlug", factory)
//	acc, err := reg.Build("MiSmartPlug", logger, cfg.Accessory)
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package accessory
