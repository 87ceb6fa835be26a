// Package device provides the Device Registry for the inventory service.
//
// The Device Registry is the catalogue of all tracked hardware assets. It
// manages device lifecycle and metadata, and provides the lookup surface
// for the REST API. Device ownership and physical location are NOT stored
// here — they live in the append-only transaction log (internal/ledger)
// and are derived on demand.
//
// # Key Types
//
//   - Device: The core entity representing a tracked hardware asset
//   - DeviceType: Asset classification (laptop, monitor, printer, etc.)
//
// # Usage
//
//	// Create repository and registry
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load devices into cache on startup
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Register a new device
//	dev := &device.Device{
//	    Title:           "ThinkPad X1 Carbon Gen 12",
//	    Type:            device.DeviceTypeLaptop,
//	    SerialNumber:    "PF-3XK9TQ",
//	    RZUsernameBuyer: "fswalther",
//	}
//	if err := registry.CreateDevice(ctx, dev); err != nil {
//	    return err
//	}
//
//	// Query devices
//	devices, _ := registry.ListDevices(ctx)
//	dev, _ := registry.GetDevice(ctx, "dev-1a2b3c4d")
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package device
