package schema

// Tables lists baseline table shapes in creation order. A table referenced by
// a foreign key comes before the table holding the key.
func Tables() []TableSpec {
	return []TableSpec{
		{
			Name: "user",
			Columns: []ColumnDef{
				{Name: "id", Type: Integer, PrimaryKey: true},
				{Name: "username", Type: VarChar(80), NotNull: true, Unique: true},
				{Name: "password_hash", Type: VarChar(128)},
				{Name: "is_admin", Type: Boolean, Default: lit("false")},
			},
		},
		{
			Name: "truck",
			Columns: []ColumnDef{
				{Name: "id", Type: Integer, PrimaryKey: true},
				{Name: "plate", Type: VarChar(20), NotNull: true, Unique: true},
				{Name: "location", Type: VarChar(100), Default: lit("''")},
				{Name: "location_last_updated", Type: VarChar(20), Default: lit("'2000-01-01'")},
				{Name: "creation_date", Type: VarChar(20), NotNull: true},
				{Name: "deletion_date", Type: VarChar(20)},
				{Name: "is_location_manual", Type: Boolean, Default: lit("false")},
				{Name: "zones_str", Type: VarChar(200), Default: lit("''")},
			},
		},
		{
			Name: "trip",
			Columns: []ColumnDef{
				{Name: "id", Type: Integer, PrimaryKey: true},
				{Name: "type", Type: VarChar(20), NotNull: true},
				{Name: "client", Type: VarChar(100), NotNull: true},
				{Name: "driver", Type: VarChar(100), Default: lit("''")},
				{Name: "origin", Type: VarChar(100), NotNull: true},
				{Name: "destination", Type: VarChar(100), NotNull: true},
				{Name: "load_date", Type: VarChar(20), NotNull: true},
				{Name: "unload_date", Type: VarChar(20), NotNull: true},
				{Name: "assigned_truck_plate", Type: VarChar(20), References: &ForeignKey{Table: "truck", Column: "plate"}},
				{Name: "assigned_slot", Type: Integer},
				{Name: "is_urgent", Type: Boolean, Default: lit("false")},
				{Name: "is_groupage", Type: Boolean, Default: lit("false")},
				{Name: "zone", Type: VarChar(50)},
				{Name: "pg", Type: Integer, Default: lit("0")},
				{Name: "ep", Type: Integer, Default: lit("0")},
				{Name: "pp", Type: Integer, Default: lit("0")},
				{Name: "notify_time", Type: VarChar(20), Default: lit("''")},
				{Name: "is_notified", Type: Boolean, Default: lit("false")},
			},
		},
		{
			Name: "daily_note",
			Columns: []ColumnDef{
				{Name: "id", Type: Integer, PrimaryKey: true},
				{Name: "date", Type: VarChar(20), NotNull: true},
				{Name: "type", Type: VarChar(20), NotNull: true},
				{Name: "content", Type: Text, Default: lit("''")},
			},
			Uniques: [][]string{{"date", "type"}},
		},
		{
			Name: "truck_fds",
			Columns: []ColumnDef{
				{Name: "id", Type: Integer, PrimaryKey: true},
				{Name: "truck_plate", Type: VarChar(20), NotNull: true, References: &ForeignKey{Table: "truck", Column: "plate"}},
				{Name: "date", Type: VarChar(20), NotNull: true},
				{Name: "is_out_of_service", Type: Boolean, Default: lit("true")},
			},
			Uniques: [][]string{{"truck_plate", "date"}},
		},
		{
			Name: "driver",
			Columns: []ColumnDef{
				{Name: "id", Type: Integer, PrimaryKey: true},
				{Name: "name", Type: VarChar(100), NotNull: true},
				{Name: "dni", Type: VarChar(20), Default: lit("''")},
				{Name: "phone", Type: VarChar(20), Default: lit("''")},
				{Name: "alias", Type: VarChar(50), Default: lit("''")},
			},
		},
		{
			Name: "trailer",
			Columns: []ColumnDef{
				{Name: "id", Type: Integer, PrimaryKey: true},
				{Name: "plate", Type: VarChar(20), NotNull: true, Unique: true},
				{Name: "type", Type: VarChar(50), Default: lit("''")},
			},
		},
	}
}

// Catalog lists columns added after their table shipped, in the order they
// were introduced. Entries are only ever appended: deployed binaries and
// stored rows rely on every column listed here.
func Catalog() []ColumnSpec {
	return []ColumnSpec{
		{Table: "truck", Name: "manual_location", Type: VarChar(100), Default: lit("''")},
		{Table: "truck", Name: "is_zone_manual", Type: Boolean, Default: lit("false")},
		{Table: "truck", Name: "zones_last_updated", Type: VarChar(20), Default: lit("'2000-01-01'")},
		{Table: "truck", Name: "manual_zones_str", Type: VarChar(200), Default: lit("''")},
		{Table: "truck", Name: "trailer", Type: VarChar(50), Default: lit("''")},
		{Table: "truck", Name: "driver_name", Type: VarChar(100), Default: lit("''")},
		{Table: "truck", Name: "driver_phone", Type: VarChar(20), Default: lit("''")},
		{Table: "truck", Name: "driver_dni", Type: VarChar(20), Default: lit("''")},
		{Table: "truck", Name: "driver_alias", Type: VarChar(50), Default: lit("''")},
		{Table: "truck", Name: "history_str", Type: Text, Default: lit("'[]'")},
		{Table: "trip", Name: "destination_zone", Type: VarChar(50)},
	}
}

// ColumnRef names a single column for read-only presence checks.
type ColumnRef struct {
	Table  TableName `json:"table"`
	Column string    `json:"column"`
}

func (r ColumnRef) String() string {
	return string(r.Table) + "." + r.Column
}

// DefaultVerifySubset is the set of late-added columns whose absence has
// historically broken the trucks and trips screens.
func DefaultVerifySubset() []ColumnRef {
	return []ColumnRef{
		{Table: "truck", Column: "manual_location"},
		{Table: "truck", Column: "is_zone_manual"},
		{Table: "truck", Column: "manual_zones_str"},
		{Table: "trip", Column: "destination_zone"},
	}
}
