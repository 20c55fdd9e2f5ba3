package db

import (
	"crypto/sha3"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// SQLiteDriverName is the SQLCipher driver with the store's SQL functions.
	SQLiteDriverName = "sqlite3_stylehaven"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("sha3", sqliteSHA3, true); err != nil {
				// Some SQLite builds may already expose sha3().
				if strings.Contains(strings.ToLower(err.Error()), "already exists") {
					return nil
				}
				return fmt.Errorf("register sha3 SQL function: %w", err)
			}
			return nil
		},
	})
}

// sqliteSHA3 backs sha3(value, bits). Tokens are stored as sha3(token, 256)
// so a leaked database does not leak usable bearer tokens.
func sqliteSHA3(input any, bits int64) ([]byte, error) {
	var data []byte
	switch x := input.(type) {
	case nil:
	case []byte:
		data = x
	case string:
		data = []byte(x)
	default:
		return nil, fmt.Errorf("unsupported sha3 input type: %T", input)
	}

	switch bits {
	case 256:
		sum := sha3.Sum256(data)
		return sum[:], nil
	case 512:
		sum := sha3.Sum512(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("unsupported sha3 size: %d", bits)
	}
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY conflict.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
