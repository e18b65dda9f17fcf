// Package db persists the assertion audit trail. The in-memory registry is
// authoritative; these rows exist so the full lifecycle of every assertion
// survives restarts and can be inspected after withdrawal.
package db

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/offchainlabs/claimstake/claimmarket"
	"github.com/offchainlabs/claimstake/oracle"
)

type SqliteStore struct {
	sqlDB *sqlx.DB
	lock  sync.Mutex
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	//#nosec G304
	if _, err := os.Stat(path); err != nil {
		if _, err = os.Create(path); err != nil {
			return nil, err
		}
	}
	sqlDB, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err = dbInit(sqlDB, schemaList); err != nil {
		return nil, err
	}
	return &SqliteStore{sqlDB: sqlDB}, nil
}

func dbInit(db *sqlx.DB, schemaList []string) error {
	version, err := fetchVersion(db)
	if err != nil {
		return err
	}
	for index, schema := range schemaList {
		if index+1 > version {
			if err = executeSchema(db, schema, index+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func fetchVersion(db *sqlx.DB) (int, error) {
	flagValue := make([]int, 0)
	err := db.Select(&flagValue, "SELECT FlagValue FROM Flags WHERE FlagName = 'CurrentVersion'")
	if err != nil {
		if !strings.Contains(err.Error(), "no such table") {
			return 0, err
		}
		if _, err = db.Exec(flagSetup); err != nil {
			return 0, err
		}
		err = db.Select(&flagValue, "SELECT FlagValue FROM Flags WHERE FlagName = 'CurrentVersion'")
		if err != nil {
			return 0, err
		}
	}
	if len(flagValue) == 0 {
		return 0, fmt.Errorf("no version found")
	}
	return flagValue[0], nil
}

func executeSchema(db *sqlx.DB, schema string, version int) error {
	// Update the version and execute the schema atomically
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(schema); err != nil {
		return err
	}
	if _, err = tx.Exec(fmt.Sprintf("UPDATE Flags SET FlagValue = %d WHERE FlagName = 'CurrentVersion'", version)); err != nil {
		return err
	}
	return tx.Commit()
}

func assertionParams(a *claimmarket.Assertion) map[string]interface{} {
	stakeReturned := ""
	if a.StakeReturned != nil {
		stakeReturned = a.StakeReturned.String()
	}
	return map[string]interface{}{
		"Id":            a.ID.String(),
		"Claimant":      a.Claimant.Hex(),
		"CreatedAt":     a.CreatedAt.Unix(),
		"Status":        a.Status.String(),
		"Stake":         a.StakeAmount.String(),
		"Wager":         a.WagerAmount.String(),
		"Challenger":    a.Challenger.Hex(),
		"Withdrawn":     a.Withdrawn,
		"StakeReturned": stakeReturned,
	}
}

func (d *SqliteStore) InsertAssertion(a *claimmarket.Assertion) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	query := `INSERT INTO Assertions (
        Id, Claimant, CreatedAt, Status, Stake, Wager, Challenger, Withdrawn, StakeReturned
    ) VALUES (
        :Id, :Claimant, :CreatedAt, :Status, :Stake, :Wager, :Challenger, :Withdrawn, :StakeReturned
    )`
	_, err := d.sqlDB.NamedExec(query, assertionParams(a))
	return err
}

func (d *SqliteStore) UpdateAssertion(a *claimmarket.Assertion) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	query := `UPDATE Assertions SET
        Status = :Status,
        Challenger = :Challenger,
        Withdrawn = :Withdrawn,
        StakeReturned = :StakeReturned
    WHERE Id = :Id`
	_, err := d.sqlDB.NamedExec(query, assertionParams(a))
	return err
}

func (d *SqliteStore) InsertSettlement(id oracle.AssertionID, recipient common.Address, amount *big.Int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	query := `INSERT INTO Settlements (AssertionId, Recipient, Amount, SettledAt)
        VALUES (:AssertionId, :Recipient, :Amount, :SettledAt)`
	_, err := d.sqlDB.NamedExec(query, map[string]interface{}{
		"AssertionId": id.String(),
		"Recipient":   recipient.Hex(),
		"Amount":      amount.String(),
		"SettledAt":   time.Now().Unix(),
	})
	return err
}

func (d *SqliteStore) Close() error {
	return d.sqlDB.Close()
}
