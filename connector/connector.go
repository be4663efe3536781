// ABOUTME: Composed connector view resolving each capability against the plugin and its overrides
// ABOUTME: The plugin always wins on a name collision; the plugin value itself is never modified
package connector

import (
	"context"
	"reflect"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/harperreed/callbridge/models"
)

// Connector is a read-only view over a registered plugin and the interface
// overrides that fill the capabilities the plugin does not define.
type Connector struct {
	platform  string
	base      any
	overrides map[string]any
}

// Platform returns the platform key the view was resolved for.
func (c *Connector) Platform() string {
	return c.platform
}

// Base returns the registered plugin, or nil when the view is made of overrides only.
func (c *Connector) Base() any {
	return c.base
}

// Lookup resolves a capability or any other named function. A method defined by
// the plugin takes precedence over an override of the same name.
func (c *Connector) Lookup(name string) (any, bool) {
	if m, ok := baseMethod(c.base, name); ok {
		return m.Interface(), true
	}
	fn, ok := c.overrides[name]
	return fn, ok
}

// Has reports whether the view can serve name.
func (c *Connector) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Methods lists every resolvable name, sorted.
func (c *Connector) Methods() []string {
	seen := make(map[string]bool)
	for _, name := range baseMethodNames(c.base) {
		seen[name] = true
	}
	for name := range c.overrides {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (c *Connector) GetAuthType(ctx context.Context, req AuthTypeRequest) (string, error) {
	if b, ok := c.base.(AuthTyper); ok {
		return b.GetAuthType(ctx, req)
	}
	if fn, ok := override[GetAuthTypeFunc](c, CapGetAuthType); ok {
		return fn(ctx, req)
	}
	return "", notImplemented(c.platform, CapGetAuthType)
}

func (c *Connector) GetOauthInfo(ctx context.Context, req OauthInfoRequest) (*OauthInfo, error) {
	if b, ok := c.base.(OauthInfoProvider); ok {
		return b.GetOauthInfo(ctx, req)
	}
	if fn, ok := override[GetOauthInfoFunc](c, CapGetOauthInfo); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapGetOauthInfo)
}

func (c *Connector) GetBasicAuth(req BasicAuthRequest) (string, error) {
	if b, ok := c.base.(BasicAuthProvider); ok {
		return b.GetBasicAuth(req), nil
	}
	if fn, ok := override[GetBasicAuthFunc](c, CapGetBasicAuth); ok {
		return fn(req), nil
	}
	return "", notImplemented(c.platform, CapGetBasicAuth)
}

// GetLogFormatType returns the connector's note format, plain text when the
// connector does not declare one.
func (c *Connector) GetLogFormatType(proxyConfig *models.ProxyConfig) string {
	if b, ok := c.base.(LogFormatter); ok {
		return b.GetLogFormatType(c.platform, proxyConfig)
	}
	if fn, ok := override[GetLogFormatTypeFunc](c, CapGetLogFormatType); ok {
		return fn(c.platform, proxyConfig)
	}
	return models.FormatPlainText
}

func (c *Connector) CreateCallLog(ctx context.Context, req CreateCallLogRequest) (*CreateCallLogResult, error) {
	if b, ok := c.base.(CallLogCreator); ok {
		return b.CreateCallLog(ctx, req)
	}
	if fn, ok := override[CreateCallLogFunc](c, CapCreateCallLog); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapCreateCallLog)
}

func (c *Connector) UpdateCallLog(ctx context.Context, req UpdateCallLogRequest) (*UpdateCallLogResult, error) {
	if b, ok := c.base.(CallLogUpdater); ok {
		return b.UpdateCallLog(ctx, req)
	}
	if fn, ok := override[UpdateCallLogFunc](c, CapUpdateCallLog); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapUpdateCallLog)
}

func (c *Connector) GetCallLog(ctx context.Context, req GetCallLogRequest) (*GetCallLogResult, error) {
	if b, ok := c.base.(CallLogGetter); ok {
		return b.GetCallLog(ctx, req)
	}
	if fn, ok := override[GetCallLogFunc](c, CapGetCallLog); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapGetCallLog)
}

func (c *Connector) CreateMessageLog(ctx context.Context, req CreateMessageLogRequest) (*CreateMessageLogResult, error) {
	if b, ok := c.base.(MessageLogCreator); ok {
		return b.CreateMessageLog(ctx, req)
	}
	if fn, ok := override[CreateMessageLogFunc](c, CapCreateMessageLog); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapCreateMessageLog)
}

func (c *Connector) UpdateMessageLog(ctx context.Context, req UpdateMessageLogRequest) (*UpdateMessageLogResult, error) {
	if b, ok := c.base.(MessageLogUpdater); ok {
		return b.UpdateMessageLog(ctx, req)
	}
	if fn, ok := override[UpdateMessageLogFunc](c, CapUpdateMessageLog); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapUpdateMessageLog)
}

func (c *Connector) FindContact(ctx context.Context, req FindContactRequest) (*FindContactResult, error) {
	if b, ok := c.base.(ContactFinder); ok {
		return b.FindContact(ctx, req)
	}
	if fn, ok := override[FindContactFunc](c, CapFindContact); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapFindContact)
}

func (c *Connector) FindContactWithName(ctx context.Context, req FindContactWithNameRequest) (*FindContactResult, error) {
	if b, ok := c.base.(ContactNameFinder); ok {
		return b.FindContactWithName(ctx, req)
	}
	if fn, ok := override[FindContactWithNameFunc](c, CapFindContactWithName); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapFindContactWithName)
}

func (c *Connector) CreateContact(ctx context.Context, req CreateContactRequest) (*CreateContactResult, error) {
	if b, ok := c.base.(ContactCreator); ok {
		return b.CreateContact(ctx, req)
	}
	if fn, ok := override[CreateContactFunc](c, CapCreateContact); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapCreateContact)
}

func (c *Connector) UnAuthorize(ctx context.Context, req UnAuthorizeRequest) (*UnAuthorizeResult, error) {
	if b, ok := c.base.(Unauthorizer); ok {
		return b.UnAuthorize(ctx, req)
	}
	if fn, ok := override[UnAuthorizeFunc](c, CapUnAuthorize); ok {
		return fn(ctx, req)
	}
	return nil, notImplemented(c.platform, CapUnAuthorize)
}

// override fetches the named override as F. Func literals with the same
// underlying signature as F are converted.
func override[F any](c *Connector, name string) (F, bool) {
	var zero F
	v, ok := c.overrides[name]
	if !ok || v == nil {
		return zero, false
	}
	if f, ok := v.(F); ok {
		return f, true
	}
	target := reflect.TypeFor[F]()
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() || !rv.Type().ConvertibleTo(target) {
		return zero, false
	}
	return rv.Convert(target).Interface().(F), true
}

func baseMethod(base any, name string) (reflect.Value, bool) {
	if base == nil || name == "" {
		return reflect.Value{}, false
	}
	m := reflect.ValueOf(base).MethodByName(exportedName(name))
	if !m.IsValid() {
		return reflect.Value{}, false
	}
	return m, true
}

func baseMethodNames(base any) []string {
	if base == nil {
		return nil
	}
	t := reflect.TypeOf(base)
	names := make([]string, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		names = append(names, capabilityName(t.Method(i).Name))
	}
	return names
}

// exportedName maps "createCallLog" to "CreateCallLog".
func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// capabilityName maps "CreateCallLog" to "createCallLog".
func capabilityName(method string) string {
	r, size := utf8.DecodeRuneInString(method)
	return string(unicode.ToLower(r)) + method[size:]
}
