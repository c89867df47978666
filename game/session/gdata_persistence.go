package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/quasilyte/gdata/v2"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/mcp-training/mininggame/game/service"
)

const (
	gdataSessionsObject = "sessions"
	gdataIndexObject    = "index"
	gdataIndexProp      = "session_ids"
)

// GDataPersistence stores session saves in the per-user application data
// directory managed by gdata. gdata has no listing, so the set of saved IDs
// is kept in its own index property.
type GDataPersistence struct {
	manager       *gdata.Manager
	configManager service.ConfigManager
	log           logrus.FieldLogger
	mu            sync.Mutex
}

// NewGDataPersistence opens (or creates) the gdata store for appName
func NewGDataPersistence(appName string, configManager service.ConfigManager, log logrus.FieldLogger) (*GDataPersistence, error) {
	manager, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("failed to open save storage %q: %w", appName, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GDataPersistence{
		manager:       manager,
		configManager: configManager,
		log:           log,
	}, nil
}

func gdataKey(id string) string {
	return strings.ToLower(id)
}

// Save writes the session's progress and records its ID in the index
func (gp *GDataPersistence) Save(session *service.Session) error {
	data, err := persistedData(session)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	key := gdataKey(session.ID)
	if err := gp.manager.SaveObjectProp(gdataSessionsObject, key, raw); err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}

	ids, err := gp.readIndex()
	if err != nil {
		return err
	}
	if _, ok := ids[key]; !ok {
		ids[key] = struct{}{}
		return gp.writeIndex(ids)
	}
	return nil
}

// Load rebuilds a session from its save
func (gp *GDataPersistence) Load(id string) (*service.Session, error) {
	gp.mu.Lock()
	raw, err := gp.loadRaw(gdataKey(id))
	gp.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var data PersistedSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return restoreSession(data, gp.configManager, gp.log)
}

func (gp *GDataPersistence) loadRaw(key string) ([]byte, error) {
	ids, err := gp.readIndex()
	if err != nil {
		return nil, err
	}
	if _, ok := ids[key]; !ok || !gp.manager.ObjectPropExists(gdataSessionsObject, key) {
		return nil, ErrSessionNotFound
	}
	raw, err := gp.manager.LoadObjectProp(gdataSessionsObject, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", key, err)
	}
	return raw, nil
}

// Delete drops the session from the index and blanks its save
func (gp *GDataPersistence) Delete(id string) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	key := gdataKey(id)
	ids, err := gp.readIndex()
	if err != nil {
		return err
	}
	if _, ok := ids[key]; !ok {
		return ErrSessionNotFound
	}
	delete(ids, key)
	if err := gp.writeIndex(ids); err != nil {
		return err
	}
	if err := gp.manager.SaveObjectProp(gdataSessionsObject, key, []byte("{}")); err != nil {
		gp.log.WithError(err).WithField("session", id).Warn("failed to blank deleted save")
	}
	return nil
}

// ListAll returns the saved session IDs in sorted order
func (gp *GDataPersistence) ListAll() ([]string, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	ids, err := gp.readIndex()
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(ids))
	for id := range ids {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

// Exists reports whether a save is indexed for id
func (gp *GDataPersistence) Exists(id string) bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	ids, err := gp.readIndex()
	if err != nil {
		return false
	}
	_, ok := ids[gdataKey(id)]
	return ok
}

func (gp *GDataPersistence) readIndex() (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	if !gp.manager.ObjectPropExists(gdataIndexObject, gdataIndexProp) {
		return ids, nil
	}
	raw, err := gp.manager.LoadObjectProp(gdataIndexObject, gdataIndexProp)
	if err != nil {
		return nil, fmt.Errorf("failed to read save index: %w", err)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to parse save index: %w", err)
	}
	for _, id := range list {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (gp *GDataPersistence) writeIndex(ids map[string]struct{}) error {
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	sort.Strings(list)
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal save index: %w", err)
	}
	if err := gp.manager.SaveObjectProp(gdataIndexObject, gdataIndexProp, raw); err != nil {
		return fmt.Errorf("failed to write save index: %w", err)
	}
	return nil
}
