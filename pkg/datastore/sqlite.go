package datastore

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteDatastore struct {
	db     *sql.DB
	config *Config
}

func NewSQLiteDatastore(config *Config) *SQLiteDatastore {
	db, err := sql.Open("sqlite3", config.DBName)
	if err != nil {
		panic(fmt.Errorf("failed to open database: %v", err))
	}

	// Create table if it doesn't exist.
	columnDefs := make([]string, 0, len(config.ColumnConfig))
	for name, typ := range config.ColumnConfig {
		columnDefs = append(columnDefs, fmt.Sprintf("%s %s", name, typ))
	}
	query := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)",
		config.TableName,
		strings.Join(columnDefs, ", "),
	)
	_, err = db.Exec(query)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %v", config.TableName, err))
	}
	return &SQLiteDatastore{
		db:     db,
		config: config,
	}
}

func (ds *SQLiteDatastore) Close() error {
	return ds.db.Close()
}

func (ds *SQLiteDatastore) Get(key string, columns []string) (map[string]interface{}, error) {
	row := ds.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			strings.Join(columns, ", "), ds.config.TableName, ds.config.PrimaryKeyColumnName),
		key,
	)

	// Prepare a slice to hold the values.
	values := make([]interface{}, len(columns))
	for i, column := range columns {
		// We use the type information stored in the Config to create a variable of the correct type.
		typ := ds.config.ColumnConfig[column]
		if typ == "" {
			return nil, fmt.Errorf("unsupported column: %s", column)
		}
		var value interface{}
		switch strings.ToLower(strings.Fields(typ)[0]) {
		case "text":
			value = new(sql.NullString)
		case "int":
			// For simplicity, we use int64 for all integers.
			value = new(sql.NullInt64)
		case "float":
			value = new(sql.NullFloat64)
		default:
			// If the column type is not supported, we return an error.
			return nil, fmt.Errorf("unsupported column type: %s", ds.config.ColumnConfig[column])
		}
		values[i] = value
	}

	// Scan the result into the values slice.
	err := row.Scan(values...)
	if err != nil {
		if err == sql.ErrNoRows {
			// There is no row with the given key.
			return nil, nil
		}
		return nil, err
	}

	// Prepare the result map and fill it with values.
	result := make(map[string]interface{})
	for i, column := range columns {
		switch v := values[i].(type) {
		case *sql.NullString:
			if v.Valid {
				result[column] = v.String
			}
		case *sql.NullInt64:
			if v.Valid {
				result[column] = v.Int64
			}
		case *sql.NullFloat64:
			if v.Valid {
				result[column] = v.Float64
			}
		default:
			result[column] = reflect.ValueOf(values[i]).Elem().Interface()
		}
	}

	return result, nil
}

func (ds *SQLiteDatastore) Put(key string, values map[string]interface{}) error {
	columns := []string{ds.config.PrimaryKeyColumnName}
	placeholders := []string{"?"}
	args := []interface{}{key}
	for column, value := range values {
		// the key argument already covers the primary key column
		if column == ds.config.PrimaryKeyColumnName {
			continue
		}
		columns = append(columns, column)
		placeholders = append(placeholders, "?")
		args = append(args, value)
	}
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		ds.config.TableName,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	_, err := ds.db.Exec(query, args...)
	return err
}

// Update writes the given columns of an existing row, other columns keep
// their values. A missing row is not an error for the caller to discover here.
func (ds *SQLiteDatastore) Update(key string, values map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}
	assignments := make([]string, 0, len(values))
	args := make([]interface{}, 0, len(values)+1)
	for column, value := range values {
		assignments = append(assignments, fmt.Sprintf("%s = ?", column))
		args = append(args, value)
	}
	args = append(args, key)
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		ds.config.TableName,
		strings.Join(assignments, ", "),
		ds.config.PrimaryKeyColumnName,
	)
	_, err := ds.db.Exec(query, args...)
	return err
}

func (ds *SQLiteDatastore) Delete(key string) error {
	_, err := ds.db.Exec(
		fmt.Sprintf(
			"DELETE FROM %s WHERE %s = ?", ds.config.TableName, ds.config.PrimaryKeyColumnName),
		key)
	return err
}

func (ds *SQLiteDatastore) ListAll(columns []string) (map[string]map[string]interface{}, error) {
	selected := "*"
	if len(columns) > 0 {
		// the primary key always rides along, it keys the result map
		selected = strings.Join(append([]string{ds.config.PrimaryKeyColumnName}, columns...), ", ")
	}
	rows, err := ds.db.Query(fmt.Sprintf("SELECT %s FROM %s", selected, ds.config.TableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make(map[string]map[string]interface{})
	for rows.Next() {
		values := make([]interface{}, len(cols))
		valuePointers := make([]interface{}, len(cols))
		for i := range values {
			valuePointers[i] = &values[i]
		}

		err := rows.Scan(valuePointers...)
		if err != nil {
			return nil, err
		}

		m := make(map[string]interface{})
		for i, colName := range cols {
			val := valuePointers[i].(*interface{})
			if b, ok := (*val).([]byte); ok {
				m[colName] = string(b)
				continue
			}
			m[colName] = *val
		}

		key, _ := m[ds.config.PrimaryKeyColumnName].(string)
		results[key] = m
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
