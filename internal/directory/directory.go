package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/floww-app/chatkit/internal/types"
)

// Directory resolves employee identifiers to display details. The store and
// UI receive a resolved directory by injection; they never fetch employees
// themselves.
type Directory interface {
	Employee(id string) (types.Employee, bool)
	Employees() []types.Employee
	Refresh(ctx context.Context) error
}

type listResponse struct {
	Employees []types.Employee `json:"employees"`
}

// RestDirectory fetches the employee list over REST and caches it in the
// instance. It is an explicitly constructed value, not a package-level cache.
type RestDirectory struct {
	apiURL string
	token  string
	httpc  *http.Client
	log    *log.Logger

	mu   sync.RWMutex
	byId map[string]types.Employee
}

func NewRestDirectory(apiURL, token string, logger *log.Logger) (*RestDirectory, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("api URL cannot be empty")
	}
	if token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	return &RestDirectory{
		apiURL: apiURL,
		token:  token,
		httpc:  &http.Client{Timeout: 30 * time.Second},
		log:    logger,
		byId:   make(map[string]types.Employee),
	}, nil
}

// Refresh replaces the cached employee list from the backend.
func (d *RestDirectory) Refresh(ctx context.Context) error {
	url := d.apiURL + "/api/wall/employees/list_all"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("refresh directory: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", d.token)

	resp, err := d.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("refresh directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh directory: unexpected status %d", resp.StatusCode)
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("refresh directory: decode: %w", err)
	}

	byId := make(map[string]types.Employee, len(out.Employees))
	for _, e := range out.Employees {
		byId[e.Id] = e
	}

	d.mu.Lock()
	d.byId = byId
	d.mu.Unlock()

	d.log.Printf("directory refreshed, %d employees", len(byId))
	return nil
}

func (d *RestDirectory) Employee(id string) (types.Employee, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.byId[id]
	return e, ok
}

func (d *RestDirectory) Employees() []types.Employee {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]types.Employee, 0, len(d.byId))
	for _, e := range d.byId {
		out = append(out, e)
	}

	return out
}
