package eventlog

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"adminconsole/internal/securitylog"
)

// HeaderLegalBasis carries the GDPR legal basis claimed by the caller for a read
// of personal data.
const HeaderLegalBasis = "X-Legal-Basis"

const (
	DefaultLegalBasis   = "legitimate interest"
	AuditLogRetention   = "7 years"
	defaultExportFormat = "json"
)

// bulkItemFields are checked first, in order, when counting bulk items.
var bulkItemFields = []string{"userIds", "ids", "items"}

func build(base Config, opts []Option) Config {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// LoginSuccess records successful logins.
func LoginSuccess(opts ...Option) Config {
	return build(Config{
		EventType:   securitylog.EventLoginSuccess,
		Resource:    Const("authentication"),
		Action:      Const("login"),
		Description: Func(func(x *Exchange) string { return withEmail("Successful login", x) }),
	}, opts)
}

// LoginFailure records failed logins. It logs regardless of status, limited to
// client errors so it can share a route with LoginSuccess.
func LoginFailure(opts ...Option) Config {
	return build(Config{
		EventType:       securitylog.EventLoginFailure,
		Resource:        Const("authentication"),
		Action:          Const("login"),
		Description:     Func(func(x *Exchange) string { return withEmail("Failed login attempt", x) }),
		LogAllResponses: true,
		When:            ClientError,
	}, opts)
}

// DataAccess records successful reads.
func DataAccess(opts ...Option) Config {
	return build(Config{
		EventType: securitylog.EventDataAccess,
		Description: Func(func(x *Exchange) string {
			return fmt.Sprintf("Data accessed: %s %s", x.Request.Method, x.Request.URL.Path)
		}),
	}, opts)
}

// DataModification records successful writes. It never logs the request body.
func DataModification(opts ...Option) Config {
	cfg := build(Config{
		EventType: securitylog.EventDataModification,
		Description: Func(func(x *Exchange) string {
			return fmt.Sprintf("Data modified: %s %s", x.Request.Method, x.Request.URL.Path)
		}),
	}, opts)
	cfg.LogBody = false
	return cfg
}

// Export records data exports with the requested format and the export type.
func Export(exportType string, opts ...Option) Config {
	return build(Config{
		EventType: securitylog.EventExportData,
		Action:    Const("export"),
		Description: Func(func(x *Exchange) string {
			return fmt.Sprintf("Exported %s as %s", exportType, exportFormat(x))
		}),
		Metadata: Func(func(x *Exchange) map[string]any {
			return map[string]any{
				"format":     exportFormat(x),
				"exportType": exportType,
			}
		}),
	}, opts)
}

// BulkOperation records bulk operations with the number of items they touched.
func BulkOperation(opts ...Option) Config {
	return build(Config{
		EventType: securitylog.EventBulkOperation,
		Action: Func(func(x *Exchange) string {
			return "bulk_" + strings.ToLower(x.Request.Method)
		}),
		Description: Func(func(x *Exchange) string {
			return fmt.Sprintf("Bulk operation on %d items", ItemCount(x.Body))
		}),
		Metadata: Func(func(x *Exchange) map[string]any {
			return map[string]any{"itemCount": ItemCount(x.Body)}
		}),
	}, opts)
}

// PermissionDenied records 403 responses.
func PermissionDenied(opts ...Option) Config {
	return build(Config{
		EventType: securitylog.EventPermissionDenied,
		Action:    Const("access_denied"),
		Description: Func(func(x *Exchange) string {
			return fmt.Sprintf("Permission denied: %s %s", x.Request.Method, x.Request.URL.Path)
		}),
		LogAllResponses: true,
		When:            StatusIs(http.StatusForbidden),
	}, opts)
}

// SuspiciousActivity records every response of a route flagged as suspicious.
func SuspiciousActivity(opts ...Option) Config {
	return build(Config{
		EventType: securitylog.EventSuspiciousActivity,
		Action:    Const("suspicious_request"),
		Description: Func(func(x *Exchange) string {
			return fmt.Sprintf("Suspicious request: %s %s", x.Request.Method, x.Request.URL.Path)
		}),
		LogAllResponses: true,
	}, opts)
}

// ConfigurationChange records changes to system configuration. It never logs the
// request body.
func ConfigurationChange(opts ...Option) Config {
	cfg := build(Config{
		EventType:   securitylog.EventConfigurationChange,
		Resource:    Const("system_settings"),
		Action:      Const("update_configuration"),
		Description: Const("System configuration changed"),
	}, opts)
	cfg.LogBody = false
	return cfg
}

// GDPRDataAccess records reads of personal data tagged with the legal basis the
// caller claimed in the X-Legal-Basis header.
func GDPRDataAccess(opts ...Option) Config {
	return build(Config{
		EventType: securitylog.EventDataAccess,
		Action:    Const("get_personal_data"),
		Description: Func(func(x *Exchange) string {
			return fmt.Sprintf("Personal data accessed: %s", x.Request.URL.Path)
		}),
		Metadata: Func(func(x *Exchange) map[string]any {
			basis := strings.TrimSpace(x.Request.Header.Get(HeaderLegalBasis))
			if basis == "" {
				basis = DefaultLegalBasis
			}
			return map[string]any{
				"gdprRelevant": true,
				"legalBasis":   basis,
			}
		}),
	}, opts)
}

// AuditLogAccess records reads of the audit trail itself.
func AuditLogAccess(opts ...Option) Config {
	return build(Config{
		EventType:   securitylog.EventAuditLogAccess,
		Resource:    Const("security_events"),
		Action:      Const("view_audit_log"),
		Description: Const("Audit log accessed"),
		Metadata: Const(map[string]any{
			"retentionRequirement": AuditLogRetention,
			"complianceCategory":   "audit_trail",
		}),
	}, opts)
}

// ResourceWithID derives "<prefix>_<id>" from the route's {id} parameter, falling
// back to the request path when the route has none.
func ResourceWithID(prefix string) Derivation[string] {
	return Func(func(x *Exchange) string {
		if id := chi.URLParam(x.Request, "id"); id != "" {
			return prefix + "_" + id
		}
		return x.Request.URL.Path
	})
}

// StatusIs matches exactly the given statuses.
func StatusIs(statuses ...int) func(int) bool {
	return func(status int) bool {
		return slices.Contains(statuses, status)
	}
}

// ClientError matches 4xx statuses.
func ClientError(status int) bool {
	return status >= 400 && status < 500
}

// ItemCount returns the length of the first array-valued body field, preferring
// the well-known id list fields. Zero when the body holds no array.
func ItemCount(body map[string]any) int {
	for _, key := range bulkItemFields {
		if items, ok := body[key].([]any); ok {
			return len(items)
		}
	}
	keys := make([]string, 0, len(body))
	for key := range body {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if items, ok := body[key].([]any); ok {
			return len(items)
		}
	}
	return 0
}

func exportFormat(x *Exchange) string {
	if format := x.Request.URL.Query().Get("format"); format != "" {
		return format
	}
	if format, ok := x.Body["format"].(string); ok && format != "" {
		return format
	}
	return defaultExportFormat
}

func withEmail(prefix string, x *Exchange) string {
	if email, ok := x.Body["email"].(string); ok && email != "" {
		return prefix + " for " + email
	}
	return prefix
}
