// ABOUTME: Runtime directory of CRM connectors, manifests and per-platform interface overrides
// ABOUTME: Resolves the composed connector view for a platform with proxy fallback
package connector

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/harperreed/callbridge/models"
)

const (
	// ProxyPlatform is the connector used for platforms nothing is registered for.
	ProxyPlatform = "proxy"

	// DefaultManifest is the manifest key used as fallback by GetManifest.
	DefaultManifest = "default"
)

// Manifest is declarative per-platform configuration kept apart from connector code.
type Manifest struct {
	Platform    string         `json:"platform" yaml:"platform"`
	DisplayName string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	AuthType    string         `json:"authType,omitempty" yaml:"authType,omitempty"`
	Scopes      []string       `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Settings    map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Registry maps platform keys to connectors. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]any
	manifests  map[string]*Manifest
	interfaces map[string]map[string]any
	composed   map[string]*Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]any),
		manifests:  make(map[string]*Manifest),
		interfaces: make(map[string]map[string]any),
		composed:   make(map[string]*Connector),
	}
}

// RegisterConnector stores plugin under platform. The plugin must at least be
// able to create and update call logs. A nil manifest leaves any existing
// manifest in place.
func (r *Registry) RegisterConnector(platform string, plugin any, manifest *Manifest) error {
	if platform == "" {
		return fmt.Errorf("platform is required")
	}
	if _, ok := plugin.(CallLogCreator); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidConnector, platform)
	}
	if _, ok := plugin.(CallLogUpdater); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidConnector, platform)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connectors[platform] = plugin
	if manifest != nil {
		r.manifests[platform] = manifest
	}
	delete(r.composed, platform)
	return nil
}

// RegisterManifest stores a manifest without a connector, e.g. the "default" entry.
func (r *Registry) RegisterManifest(platform string, manifest *Manifest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifests[platform] = manifest
}

// RegisterConnectorInterface stores fn as the override named name for platform.
// No connector has to be registered for the platform yet.
func (r *Registry) RegisterConnectorInterface(platform, name string, fn any) error {
	if platform == "" || name == "" {
		return fmt.Errorf("platform and interface name are required")
	}
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		return fmt.Errorf("%w: %s.%s", ErrNotCallable, platform, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.interfaces[platform] == nil {
		r.interfaces[platform] = make(map[string]any)
	}
	r.interfaces[platform][name] = fn
	delete(r.composed, platform)
	return nil
}

// GetConnector returns the composed view for platform.
func (r *Registry) GetConnector(platform string) (*Connector, error) {
	r.mu.RLock()
	if c, ok := r.composed[platform]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(platform)
}

func (r *Registry) resolveLocked(platform string) (*Connector, error) {
	if c, ok := r.composed[platform]; ok {
		return c, nil
	}

	base, hasBase := r.connectors[platform]
	overrides := r.interfaces[platform]

	if !hasBase && len(overrides) == 0 {
		if platform != ProxyPlatform {
			_, proxyBase := r.connectors[ProxyPlatform]
			if proxyBase || len(r.interfaces[ProxyPlatform]) > 0 {
				return r.resolveLocked(ProxyPlatform)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrConnectorNotFound, platform)
	}

	c := &Connector{platform: platform, base: base, overrides: make(map[string]any, len(overrides))}
	for name, fn := range overrides {
		if _, defined := baseMethod(base, name); defined {
			continue
		}
		c.overrides[name] = fn
	}
	r.composed[platform] = c
	return c, nil
}

// GetOriginalConnector returns the plugin exactly as registered, without
// overrides and without proxy fallback.
func (r *Registry) GetOriginalConnector(platform string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, ok := r.connectors[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectorNotFound, platform)
	}
	return plugin, nil
}

// GetManifest returns the manifest of platform, or the default manifest when
// fallbackToDefault is set and the platform has none.
func (r *Registry) GetManifest(platform string, fallbackToDefault bool) (*Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.manifests[platform]; ok {
		return m, nil
	}
	if fallbackToDefault {
		if m, ok := r.manifests[DefaultManifest]; ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, platform)
}

// UnregisterConnector drops the connector, manifest and every override of platform.
func (r *Registry) UnregisterConnector(platform string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.connectors, platform)
	delete(r.manifests, platform)
	delete(r.interfaces, platform)
	// Views of other platforms may have fallen back to the proxy.
	if platform == ProxyPlatform {
		r.composed = make(map[string]*Connector)
		return
	}
	delete(r.composed, platform)
}

// Platforms lists every platform with a connector or overrides, sorted.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for p := range r.connectors {
		seen[p] = true
	}
	for p, o := range r.interfaces {
		if len(o) > 0 {
			seen[p] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// CapabilityReport describes what a platform's connector can do.
type CapabilityReport struct {
	Platform             string   `json:"platform"`
	OriginalMethods      []string `json:"originalMethods"`
	ComposedMethods      []string `json:"composedMethods"`
	RegisteredInterfaces []string `json:"registeredInterfaces"`
	AuthType             string   `json:"authType"`
}

// GetConnectorCapabilities inspects the plugin and composed view of platform.
// A platform served by the proxy fallback reports the proxy view.
// The auth type is best effort: any error or panic from the plugin reports "unknown".
func (r *Registry) GetConnectorCapabilities(ctx context.Context, platform string) (*CapabilityReport, error) {
	c, err := r.GetConnector(platform)
	if err != nil {
		return nil, err
	}

	original := baseMethodNames(c.Base())
	r.mu.RLock()
	registered := make([]string, 0, len(r.interfaces[c.Platform()]))
	for name := range r.interfaces[c.Platform()] {
		registered = append(registered, name)
	}
	r.mu.RUnlock()

	sort.Strings(original)
	sort.Strings(registered)

	return &CapabilityReport{
		Platform:             c.Platform(),
		OriginalMethods:      original,
		ComposedMethods:      c.Methods(),
		RegisteredInterfaces: registered,
		AuthType:             safeAuthType(ctx, c),
	}, nil
}

func safeAuthType(ctx context.Context, c *Connector) (authType string) {
	defer func() {
		if recover() != nil {
			authType = models.AuthTypeUnknown
		}
	}()
	if !c.Has(CapGetAuthType) {
		return models.AuthTypeUnknown
	}
	t, err := c.GetAuthType(ctx, AuthTypeRequest{})
	if err != nil || t == "" {
		return models.AuthTypeUnknown
	}
	return t
}
