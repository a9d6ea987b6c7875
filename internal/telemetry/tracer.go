package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for object-mapper operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Client attributes (transport-agnostic)
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"
	AttrClientPort = "client.port"
	AttrClientHost = "client.host"

	// ========================================================================
	// Transport attributes
	// ========================================================================
	AttrTransport = "transport.kind" // tcp, unix
	AttrSessionID = "session.id"

	// ========================================================================
	// Object-mapper operation attributes
	// ========================================================================
	AttrOperation  = "objmap.operation" // create_object, get_object, ...
	AttrURI        = "objmap.uri"
	AttrBackendID  = "objmap.backend_id"
	AttrDestID     = "objmap.dest_backend_id"
	AttrSize       = "objmap.size"
	AttrOffset     = "objmap.offset"
	AttrCount      = "objmap.count"
	AttrStatus     = "objmap.status"
	AttrStatusMsg  = "objmap.status_msg"
	AttrEOF        = "objmap.eof"
	AttrBytesRead  = "objmap.bytes_read"
	AttrBytesWrite = "objmap.bytes_written"
	AttrHotness    = "objmap.hotness"
	AttrGeneration = "objmap.generation"

	// ========================================================================
	// Protocol wire attributes (the objmapper binary protocol)
	// ========================================================================
	AttrProtoVersion = "proto.version"
	AttrProtoCommand = "proto.command"

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit    = "cache.hit"
	AttrCacheSource = "cache.source"
	AttrCacheState  = "cache.state"
	AttrCacheSize   = "cache.size"

	// ========================================================================
	// Storage backend attributes
	// ========================================================================
	AttrContentID = "content.id"
	AttrStoreName = "store.name"
	AttrStoreType = "store.type" // ssd, hdd, s3
	AttrBucket    = "storage.bucket"
	AttrContainer = "storage.container" // Azure Blob
	AttrKey       = "storage.key"
	AttrRegion    = "storage.region"

	// ========================================================================
	// Migration attributes
	// ========================================================================
	AttrMigrationReason = "migration.reason" // promote, demote, manual
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// ========================================================================
	// Session protocol spans
	// ========================================================================
	SpanSessionRequest = "session.request"

	// ========================================================================
	// Object-mapper operations
	// ========================================================================
	SpanCreateObject       = "objmap.create_object"
	SpanGetObject          = "objmap.get_object"
	SpanOpenBody           = "objmap.open_body"
	SpanDeleteObject       = "objmap.delete_object"
	SpanUpdateSize         = "objmap.update_size"
	SpanSetPayloadMetadata = "objmap.set_payload_metadata"
	SpanGetMetadata        = "objmap.get_metadata"
	SpanListObjects        = "objmap.list_objects"
	SpanMigrateObject      = "objmap.migrate_object"
	SpanCacheObject        = "objmap.cache_object"
	SpanEvictObject        = "objmap.evict_object"
	SpanMaintenanceTick    = "objmap.maintenance_tick"

	// ========================================================================
	// Internal storage operations (backend-agnostic)
	// ========================================================================
	SpanCacheLookup  = "cache.lookup"
	SpanCacheWrite   = "cache.write"
	SpanCacheFlush   = "cache.flush"
	SpanCacheEvict   = "cache.evict"
	SpanContentRead  = "content.read"
	SpanContentWrite = "content.write"
	SpanContentStat  = "content.stat"
	SpanMetaLookup   = "metadata.lookup"
	SpanMetaUpdate   = "metadata.update"
	SpanMetaCreate   = "metadata.create"
	SpanMetaDelete   = "metadata.delete"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// Transport returns an attribute for the transport kind (tcp, unix)
func Transport(kind string) attribute.KeyValue {
	return attribute.String(AttrTransport, kind)
}

// SessionID returns an attribute for the session identifier
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// Operation returns an attribute for the object-mapper operation name
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// URI returns an attribute for the object URI
func URI(uri string) attribute.KeyValue {
	return attribute.String(AttrURI, uri)
}

// BackendID returns an attribute for the backend ID an operation targets
func BackendID(id int) attribute.KeyValue {
	return attribute.Int(AttrBackendID, id)
}

// DestBackendID returns an attribute for a migration's destination backend
func DestBackendID(id int) attribute.KeyValue {
	return attribute.Int(AttrDestID, id)
}

// Size returns an attribute for an object's size in bytes
func Size(size int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, size)
}

// Offset returns an attribute for an I/O offset
func Offset(offset int64) attribute.KeyValue {
	return attribute.Int64(AttrOffset, offset)
}

// Count returns an attribute for a byte count
func Count(count int) attribute.KeyValue {
	return attribute.Int(AttrCount, count)
}

// Status returns an attribute for an operation's status code
func Status(status int) attribute.KeyValue {
	return attribute.Int(AttrStatus, status)
}

// StatusMsg returns an attribute for a human-readable status message
func StatusMsg(msg string) attribute.KeyValue {
	return attribute.String(AttrStatusMsg, msg)
}

// EOF returns an attribute for an end-of-stream indicator
func EOF(eof bool) attribute.KeyValue {
	return attribute.Bool(AttrEOF, eof)
}

// Hotness returns an attribute for an entry's decayed hotness score
func Hotness(h float64) attribute.KeyValue {
	return attribute.Float64(AttrHotness, h)
}

// Generation returns an attribute for an entry's generation counter
func Generation(g uint64) attribute.KeyValue {
	return attribute.Int64(AttrGeneration, int64(g))
}

// ProtoVersion returns an attribute for the wire protocol version
func ProtoVersion(v int) attribute.KeyValue {
	return attribute.Int(AttrProtoVersion, v)
}

// ProtoCommand returns an attribute for the wire protocol command byte
func ProtoCommand(cmd string) attribute.KeyValue {
	return attribute.String(AttrProtoCommand, cmd)
}

// CacheHit returns an attribute for cache hit indicator
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheSource returns an attribute for cache source
func CacheSource(source string) attribute.KeyValue {
	return attribute.String(AttrCacheSource, source)
}

// ContentID returns an attribute for content ID
func ContentID(id string) attribute.KeyValue {
	return attribute.String(AttrContentID, id)
}

// Bucket returns an attribute for S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// MigrationReason returns an attribute for why a migration was initiated
func MigrationReason(reason string) attribute.KeyValue {
	return attribute.String(AttrMigrationReason, reason)
}

// StartOperationSpan starts a span for an object-mapper operation.
// This is a convenience function that sets common attributes.
func StartOperationSpan(ctx context.Context, operation, uri string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Operation(operation),
	}
	if uri != "" {
		allAttrs = append(allAttrs, URI(uri))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "objmap."+operation, trace.WithAttributes(allAttrs...))
}

// StartMigrationSpan starts a span for a migration between two backends.
func StartMigrationSpan(ctx context.Context, uri string, from, to int, reason string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanMigrateObject, trace.WithAttributes(
		URI(uri),
		BackendID(from),
		DestBackendID(to),
		MigrationReason(reason),
	))
}

// StartContentSpan starts a span for a content store operation.
func StartContentSpan(ctx context.Context, operation string, contentID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		ContentID(contentID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "content."+operation, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}

// StartMetadataSpan starts a span for a metadata store operation.
func StartMetadataSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "metadata."+operation, trace.WithAttributes(attrs...))
}

// ============================================================================
// Store/backend attribute helpers
// ============================================================================

// StoreName returns an attribute for store name
func StoreName(name string) attribute.KeyValue {
	return attribute.String(AttrStoreName, name)
}

// StoreType returns an attribute for store type (ssd, hdd, s3)
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Container returns an attribute for Azure container name
func Container(name string) attribute.KeyValue {
	return attribute.String(AttrContainer, name)
}

// Region returns an attribute for cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// FSHandle formats an opaque handle as hex, kept for stores that expose
// content-addressed handles alongside their URI.
func FSHandle(handle []byte) attribute.KeyValue {
	return attribute.String(AttrKey, fmt.Sprintf("%x", handle))
}
