package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
	"github.com/objmapper/objmapper/pkg/objmap/backend/local"
	"github.com/objmapper/objmapper/pkg/objmap/index"
)

func newLocalBackend(t *testing.T, id int, typ backend.Type, flags backend.Flags) *backend.Backend {
	t.Helper()
	store, err := local.New(local.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("local.New() = %v", err)
	}
	return backend.New(id, typ, t.TempDir(), 1<<30, 1.0, flags, backend.Watermarks{Low: 0.2, High: 0.8}, store)
}

func TestCreateGetDeleteRoundTrip(t *testing.T) {
	m := backend.NewManager()
	b := newLocalBackend(t, 1, backend.TypeSSD, backend.Flags{Enabled: true, Persistent: true})
	if err := m.RegisterBackend(b); err != nil {
		t.Fatalf("RegisterBackend() = %v", err)
	}
	if err := m.SetDefault(1); err != nil {
		t.Fatalf("SetDefault() = %v", err)
	}

	ctx := context.Background()
	ref, err := m.CreateObject(ctx, backend.CreateRequest{URI: "obj://a", BackendID: -1})
	if err != nil {
		t.Fatalf("CreateObject() = %v", err)
	}
	ref.Release()

	if err := m.UpdateSize("obj://a", 5); err != nil {
		t.Fatalf("UpdateSize() = %v", err)
	}

	got, err := m.GetObject(ctx, "obj://a")
	if err != nil {
		t.Fatalf("GetObject() = %v", err)
	}
	if got.Entry.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", got.Entry.Size())
	}
	got.Release()

	if err := m.DeleteObject(ctx, "obj://a"); err != nil {
		t.Fatalf("DeleteObject() = %v", err)
	}
	if err := m.DeleteObject(ctx, "obj://a"); err != index.ErrNotFound {
		t.Fatalf("second DeleteObject() = %v, want ErrNotFound", err)
	}
}

func TestCreateObjectRejectsEphemeralOnDefault(t *testing.T) {
	m := backend.NewManager()
	b := newLocalBackend(t, 1, backend.TypeSSD, backend.Flags{Enabled: true, Persistent: true})
	if err := m.RegisterBackend(b); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDefault(1); err != nil {
		t.Fatal(err)
	}

	_, err := m.CreateObject(context.Background(), backend.CreateRequest{URI: "obj://x", BackendID: 1, Ephemeral: true})
	if err == nil {
		t.Fatal("CreateObject() = nil, want ephemeral-placement error")
	}
}

func TestMigrateObjectMovesEntryBetweenBackends(t *testing.T) {
	m := backend.NewManager()
	src := newLocalBackend(t, 1, backend.TypeSSD, backend.Flags{Enabled: true, Persistent: true, MigrationSrc: true})
	dst := newLocalBackend(t, 2, backend.TypeHDD, backend.Flags{Enabled: true, Persistent: true, MigrationDst: true})
	if err := m.RegisterBackend(src); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterBackend(dst); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDefault(1); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	ref, err := m.CreateObject(ctx, backend.CreateRequest{URI: "obj://m", BackendID: -1})
	if err != nil {
		t.Fatalf("CreateObject() = %v", err)
	}
	if _, err := ref.File.WriteString("payload"); err != nil {
		t.Fatalf("write: %v", err)
	}
	ref.Release()
	if err := m.UpdateSize("obj://m", 7); err != nil {
		t.Fatalf("UpdateSize() = %v", err)
	}

	if err := m.MigrateObject(ctx, "obj://m", 2); err != nil {
		t.Fatalf("MigrateObject() = %v", err)
	}

	ref2, err := m.GetObject(ctx, "obj://m")
	if err != nil {
		t.Fatalf("GetObject() after migrate = %v", err)
	}
	defer ref2.Release()
	if ref2.Entry.BackendID() != 2 {
		t.Fatalf("BackendID() = %d, want 2", ref2.Entry.BackendID())
	}
}

func TestMigrateObjectRejectsSameBackend(t *testing.T) {
	m := backend.NewManager()
	b := newLocalBackend(t, 1, backend.TypeSSD, backend.Flags{Enabled: true, Persistent: true, MigrationSrc: true, MigrationDst: true})
	if err := m.RegisterBackend(b); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDefault(1); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	ref, err := m.CreateObject(ctx, backend.CreateRequest{URI: "obj://same", BackendID: -1})
	if err != nil {
		t.Fatal(err)
	}
	ref.Release()

	if err := m.MigrateObject(ctx, "obj://same", 1); err != backend.ErrSameBackend {
		t.Fatalf("MigrateObject() = %v, want ErrSameBackend", err)
	}
}

func TestMigrateObjectRejectsEphemeralOntoPersistentBackend(t *testing.T) {
	m := backend.NewManager()
	eph := newLocalBackend(t, 1, backend.TypeSSD, backend.Flags{Enabled: true, EphemeralOnly: true, MigrationSrc: true, MigrationDst: true})
	persistent := newLocalBackend(t, 2, backend.TypeHDD, backend.Flags{Enabled: true, Persistent: true, MigrationSrc: true, MigrationDst: true})
	if err := m.RegisterBackend(eph); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterBackend(persistent); err != nil {
		t.Fatal(err)
	}
	if err := m.SetEphemeral(1); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDefault(2); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	ref, err := m.CreateObject(ctx, backend.CreateRequest{URI: "obj://eph", BackendID: -1, Ephemeral: true})
	if err != nil {
		t.Fatal(err)
	}
	ref.Release()

	if err := m.MigrateObject(ctx, "obj://eph", 2); !errors.Is(err, backend.ErrEphemeralViolation) {
		t.Fatalf("MigrateObject() = %v, want ErrEphemeralViolation", err)
	}
}

func TestMigrateObjectRejectsPersistentOntoEphemeralBackend(t *testing.T) {
	m := backend.NewManager()
	persistent := newLocalBackend(t, 1, backend.TypeSSD, backend.Flags{Enabled: true, Persistent: true, MigrationSrc: true, MigrationDst: true})
	eph := newLocalBackend(t, 2, backend.TypeHDD, backend.Flags{Enabled: true, EphemeralOnly: true, MigrationSrc: true, MigrationDst: true})
	if err := m.RegisterBackend(persistent); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterBackend(eph); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDefault(1); err != nil {
		t.Fatal(err)
	}
	if err := m.SetEphemeral(2); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	ref, err := m.CreateObject(ctx, backend.CreateRequest{URI: "obj://pers", BackendID: -1})
	if err != nil {
		t.Fatal(err)
	}
	ref.Release()

	if err := m.MigrateObject(ctx, "obj://pers", 2); !errors.Is(err, backend.ErrEphemeralViolation) {
		t.Fatalf("MigrateObject() = %v, want ErrEphemeralViolation", err)
	}
}
