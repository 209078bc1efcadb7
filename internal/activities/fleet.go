package activities

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"sync"
)

// OracleRegistrationFee is 1 unit in base units.
const OracleRegistrationFee = "1000000000000000000"

// Fleet is the set of simulated oracles this worker answers for.
type Fleet struct {
	mu      sync.RWMutex
	seed    int64
	indexes map[string][]int // oracle address -> request indexes
}

func NewFleet(seed int64) *Fleet {
	return &Fleet{
		seed:    seed,
		indexes: make(map[string][]int),
	}
}

// OracleAddress derives the i-th oracle address of a fleet.
func OracleAddress(seed int64, i int) string {
	sum := sha256.Sum256([]byte("flight-surety-oracle/" + strconv.FormatInt(seed, 10) + "/" + strconv.Itoa(i)))
	return "0x" + hex.EncodeToString(sum[:20])
}

// Add records an oracle's indexes.
func (f *Fleet) Add(oracle string, indexes []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexes[oracle] = append([]int(nil), indexes...)
}

// Eligible returns the oracles holding index, in address order.
func (f *Fleet) Eligible(index uint8) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []string
	for oracle, indexes := range f.indexes {
		for _, idx := range indexes {
			if idx == int(index) {
				out = append(out, oracle)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Size returns the number of oracles in the fleet.
func (f *Fleet) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.indexes)
}

// Seed returns the seed the fleet derives addresses and observations from.
func (f *Fleet) Seed() int64 {
	return f.seed
}

// RegisterFleet registers count oracles with the ledger, paying the fee for
// each. Oracles that are already registered only fetch their indexes, so a
// restarted worker with the same seed gets its fleet back.
func RegisterFleet(ctx context.Context, api *APIClient, fleet *Fleet, count int) error {
	for i := 0; i < count; i++ {
		oracle := OracleAddress(fleet.seed, i)
		indexes, err := api.RegisterOracle(ctx, oracle, OracleRegistrationFee)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict {
			indexes, err = api.OracleIndexes(ctx, oracle)
		}
		if err != nil {
			return fmt.Errorf("failed to register oracle %s: %w", oracle, err)
		}
		fleet.Add(oracle, indexes)
		log.Printf("Oracle %s registered with indexes %v", oracle, indexes)
	}
	return nil
}
