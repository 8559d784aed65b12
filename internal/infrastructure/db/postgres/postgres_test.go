package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
)

// fakeRow hands fixed values to Scan. A nil value leaves the destination zero.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		if v == nil {
			continue
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestSetList_Update(t *testing.T) {
	var set setList
	set.add("name", "Lab B")
	set.add("header_img", "h.png")

	q, args := set.update("ruangans", "id", int64(7))

	want := "update ruangans set name = $1, header_img = $2, updated_at = now() where id = $3 returning *"
	if q != want {
		t.Fatalf("unexpected query:\n got %s\nwant %s", q, want)
	}
	if !reflect.DeepEqual(args, []any{"Lab B", "h.png", int64(7)}) {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestSetList_EmptyPatchStillTouches(t *testing.T) {
	var set setList
	q, args := set.update("users", "id", "u1")
	if q != "update users set updated_at = now() where id = $1 returning *" {
		t.Fatalf("unexpected query: %s", q)
	}
	if len(args) != 1 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestAssetSet_Columns(t *testing.T) {
	k := domain.KondisiRusakBerat
	set := assetSet(domain.AssetPatch{RuanganID: ptr(int64(3)), Jumlah: ptr(0), Kondisi: &k})

	want := []string{"ruangan_id = $1", "jumlah = $2", "kondisi = $3"}
	if !reflect.DeepEqual(set.cols, want) {
		t.Fatalf("unexpected columns: %v", set.cols)
	}
	if set.args[2] != "rusak_berat" {
		t.Fatalf("kondisi should be sent as text, got %#v", set.args[2])
	}
}

func TestBackendError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound error
		status   int
		is       error
		message  string
	}{
		{name: "no rows maps to not found", err: pgx.ErrNoRows, notFound: domain.ErrRoomNotFound, status: 404, is: domain.ErrRoomNotFound},
		{name: "no rows without sentinel", err: pgx.ErrNoRows, is: pgx.ErrNoRows},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505", Message: "duplicate key value"}, status: 409, message: "duplicate key value"},
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503", Message: "violates foreign key"}, status: 409, message: "violates foreign key"},
		{name: "check violation", err: &pgconn.PgError{Code: "23514", Message: "violates check"}, status: 400, message: "violates check"},
		{name: "transport", err: errors.New("conn reset"), is: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := backendError("ruangans.update", tt.err, tt.notFound)

			var be *ports.BackendError
			if !errors.As(err, &be) {
				t.Fatalf("expected *ports.BackendError, got %T", err)
			}
			if be.Status != tt.status {
				t.Fatalf("status = %d, want %d", be.Status, tt.status)
			}
			if be.Message != tt.message {
				t.Fatalf("message = %q, want %q", be.Message, tt.message)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Fatalf("expected %v in chain, got %v", tt.is, err)
			}
		})
	}
}

func TestScanRoom_JoinsOwner(t *testing.T) {
	now := time.Now().UTC()
	room, err := scanRoom(fakeRow{values: []any{
		int64(4), "u1", "Lab A", (*string)(nil), now, now,
		ptr("Siti"), ptr("operator"), ptr("p.png"),
	}})
	if err != nil {
		t.Fatalf("scanRoom returned error: %v", err)
	}
	if room.User == nil || room.User.Name != "Siti" || room.User.Role != domain.RoleOperator {
		t.Fatalf("owner not joined: %+v", room.User)
	}
}

func TestScanRoom_Unassigned(t *testing.T) {
	now := time.Now().UTC()
	room, err := scanRoom(fakeRow{values: []any{int64(4), "", "Gudang", nil, now, now, nil, nil, nil}})
	if err != nil {
		t.Fatalf("scanRoom returned error: %v", err)
	}
	if room.User != nil {
		t.Fatalf("unassigned room should have no owner, got %+v", room.User)
	}
}

func TestScanRoom_RejectsInvalidRow(t *testing.T) {
	now := time.Now().UTC()
	_, err := scanRoom(fakeRow{values: []any{int64(4), "", "", nil, now, now, nil, nil, nil}})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestScanAsset(t *testing.T) {
	now := time.Now().UTC()
	a, err := scanAsset(fakeRow{values: []any{
		"a1", int64(4), "Proyektor", ptr("Epson"), ptr(2021), nil, nil, nil,
		2, "baik", nil, now, now,
		ptr(int64(4)), ptr("u1"), ptr("Lab A"), nil, &now, &now,
	}})
	if err != nil {
		t.Fatalf("scanAsset returned error: %v", err)
	}
	if a.Kondisi != domain.KondisiBaik || a.Ruangan == nil || a.Ruangan.Name != "Lab A" || a.Ruangan.UserID != "u1" {
		t.Fatalf("unexpected asset: %+v", a)
	}
}

func TestScanAsset_RejectsUnknownKondisi(t *testing.T) {
	now := time.Now().UTC()
	_, err := scanAsset(fakeRow{values: []any{
		"a1", int64(4), "Proyektor", nil, nil, nil, nil, nil,
		2, "hilang", nil, now, now,
		nil, nil, nil, nil, nil, nil,
	}})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

// TestRepositories_Postgres runs against a real database when TEST_DB_DSN is set.
func TestRepositories_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping PostgreSQL integration test")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}

	email := fmt.Sprintf("op-%d@example.com", time.Now().UnixNano())
	var userID string
	if err := pool.QueryRow(ctx,
		`insert into users (name, email, role, password_hash) values ('Operator', $1, 'operator', 'x') returning id::text`,
		email).Scan(&userID); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `delete from users where id = $1`, userID) })

	rooms := NewRoomRepository(pool)
	room, err := rooms.Insert(ctx, domain.RoomInput{UserID: userID, Name: "Lab A"})
	if err != nil {
		t.Fatalf("Insert room returned error: %v", err)
	}
	t.Cleanup(func() { _ = rooms.Delete(context.Background(), room.ID) })
	if room.ID <= 0 || room.User == nil || room.User.Name != "Operator" {
		t.Fatalf("unexpected room: %+v", room)
	}

	listed, err := rooms.List(ctx, ports.RoomFilter{OwnerID: userID})
	if err != nil || len(listed) != 1 || listed[0].ID != room.ID {
		t.Fatalf("owner listing: %+v %v", listed, err)
	}

	assets := NewAssetRepository(pool)
	a, err := assets.Insert(ctx, domain.AssetInput{RuanganID: room.ID, Name: "Proyektor", Jumlah: 1, Kondisi: domain.KondisiBaik})
	if err != nil {
		t.Fatalf("Insert asset returned error: %v", err)
	}
	if a.Ruangan == nil || a.Ruangan.ID != room.ID {
		t.Fatalf("asset should carry its room: %+v", a)
	}
	k := domain.KondisiRusakRingan
	if a, err = assets.Update(ctx, a.ID, domain.AssetPatch{Kondisi: &k}); err != nil || a.Kondisi != k {
		t.Fatalf("Update asset: %+v %v", a, err)
	}
	owned, err := assets.List(ctx, ports.AssetFilter{OwnerID: userID})
	if err != nil || len(owned) != 1 {
		t.Fatalf("owner asset listing: %+v %v", owned, err)
	}

	if _, err := rooms.Update(ctx, 1<<40, domain.RoomPatch{Name: ptr("x")}); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}

	profiles := NewProfileRepository(pool)
	cred, err := profiles.FindCredentials(ctx, email)
	if err != nil || cred.UserID != userID {
		t.Fatalf("FindCredentials: %+v %v", cred, err)
	}
	u, err := profiles.UpdateProfile(ctx, userID, domain.ProfileUpdate{Name: ptr("Siti")})
	if err != nil || u.Name != "Siti" || u.Role != domain.RoleOperator {
		t.Fatalf("UpdateProfile: %+v %v", u, err)
	}
}

// fakeRows replays fakeRow values through the pgx.Rows interface.
type fakeRows struct {
	rows []fakeRow
	i    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.i-1].values, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Scan(dest ...any) error                       { return r.rows[r.i-1].Scan(dest...) }
func (r *fakeRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}

// listDB answers Query with fixed rows and records the SQL it was given.
type listDB struct {
	rows  []fakeRow
	query string
	args  []any
}

func (d *listDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.query, d.args = sql, args
	return &fakeRows{rows: d.rows}, nil
}

func (d *listDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{err: pgx.ErrNoRows}
}

func (d *listDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func TestRoomRepository_List_CollectsEveryRow(t *testing.T) {
	now := time.Now().UTC()
	db := &listDB{rows: []fakeRow{
		{values: []any{int64(5), "u1", "Lab B", nil, now, now, ptr("Siti"), ptr("operator"), nil}},
		{values: []any{int64(4), "u1", "Lab A", nil, now, now, ptr("Siti"), ptr("operator"), nil}},
	}}

	rooms, err := NewRoomRepository(db).List(context.Background(), ports.RoomFilter{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(rooms) != 2 || rooms[0].ID != 5 || rooms[1].ID != 4 {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}
	if !reflect.DeepEqual(db.args, []any{"u1"}) {
		t.Fatalf("owner filter not bound: %v", db.args)
	}
}

func TestAssetRepository_List_RejectsInvalidRow(t *testing.T) {
	now := time.Now().UTC()
	db := &listDB{rows: []fakeRow{{values: []any{
		"a1", int64(4), "Proyektor", nil, nil, nil, nil, nil,
		2, "hilang", nil, now, now,
		nil, nil, nil, nil, nil, nil,
	}}}}

	_, err := NewAssetRepository(db).List(context.Background(), ports.AssetFilter{})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}
