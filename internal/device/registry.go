package device

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast ID lookups.
//
// List operations always go to the repository: listing must preserve
// registration order, which a map cache cannot provide.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with copies
	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.Copy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a copy to prevent external mutation of cache
		return cached.Copy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a copy)
	r.cacheMu.Lock()
	r.cache[id] = device.Copy()
	r.cacheMu.Unlock()

	return device, nil
}

// GetDeviceBySerialNumber retrieves a device by its serial number.
// The returned device is a copy; callers can safely modify it.
func (r *Registry) GetDeviceBySerialNumber(ctx context.Context, serial string) (*Device, error) {
	r.cacheMu.RLock()
	for _, d := range r.cache {
		if d.SerialNumber == serial {
			cpy := d.Copy()
			r.cacheMu.RUnlock()
			return cpy, nil
		}
	}
	r.cacheMu.RUnlock()

	return r.repo.GetBySerialNumber(ctx, serial)
}

// ListDevices retrieves all devices in registration order.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	return r.repo.List(ctx)
}

// GetDevicesByType retrieves all devices of a specific type, in registration order.
func (r *Registry) GetDevicesByType(ctx context.Context, deviceType DeviceType) ([]Device, error) {
	return r.repo.ListByType(ctx, deviceType)
}

// GetDevicesByBuyer retrieves all devices procured by an account, in registration order.
func (r *Registry) GetDevicesByBuyer(ctx context.Context, rzUsername string) ([]Device, error) {
	return r.repo.ListByBuyer(ctx, rzUsername)
}

// CreateDevice registers a new device.
// It validates the device, generates an ID if needed, and persists it.
// A non-nil seed writes the first owner and/or location transaction in the
// same database transaction as the device row.
func (r *Registry) CreateDevice(ctx context.Context, device *Device, seed *InitialAssignment) error {
	// Generate ID if not provided
	if device.ID == "" {
		device.ID = GenerateID()
	}

	// Validate
	if err := ValidateDevice(device); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Create(ctx, device, seed); err != nil {
		return err
	}

	// Update cache (store a copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[device.ID] = device.Copy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", device.ID, "title", device.Title, "serial_number", device.SerialNumber)
	return nil
}

// UpdateDevice updates an existing device's metadata.
// It validates the device and persists the changes.
func (r *Registry) UpdateDevice(ctx context.Context, device *Device) error {
	// Validate
	if err := ValidateDevice(device); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	// Update cache (store a copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[device.ID] = device.Copy()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", device.ID, "title", device.Title)
	return nil
}

// DeleteDevice removes a device. Its transaction history and purchasing
// information go with it via FK cascade.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int
	ByType       map[DeviceType]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByType:       make(map[DeviceType]int),
	}

	for _, d := range r.cache {
		stats.ByType[d.Type]++
	}

	return stats
}
