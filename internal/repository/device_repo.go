package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"smarthome/internal/models"
)

// DeviceSQLite stores each device as one JSON document in a row keyed by
// (user_id, id). Documents are schemaless: keys the struct model does not
// know about survive round trips because patches operate on the raw map.
type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite {
	return &DeviceSQLite{db: db}
}

var _ Devices = (*DeviceSQLite)(nil)

const (
	insertDeviceSQL = `
		INSERT INTO devices (user_id, id, doc) VALUES (?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET doc=excluded.doc
	`
	selectDeviceSQL  = `SELECT doc FROM devices WHERE user_id = ? AND id = ?`
	selectDevicesSQL = `SELECT id, doc FROM devices WHERE user_id = ? ORDER BY id`
	updateDeviceSQL  = `UPDATE devices SET doc = ? WHERE user_id = ? AND id = ?`
	deleteDeviceSQL  = `DELETE FROM devices WHERE user_id = ? AND id = ?`
)

// List returns every device a user owns. The row id wins over any id-like
// key inside the document.
func (r *DeviceSQLite) List(ctx context.Context, userID string) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices for user %q: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	var devices []models.Device
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		var d models.Device
		if err := json.Unmarshal([]byte(doc), &d); err != nil {
			return nil, fmt.Errorf("decode device %q: %w", id, err)
		}
		d.ID = id
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *DeviceSQLite) Get(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	doc, err := r.getDoc(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode device %q: %w", deviceID, err)
	}
	var d models.Device
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode device %q: %w", deviceID, err)
	}
	d.ID = deviceID
	return &d, nil
}

// GetState returns the states map of one device. A device without any
// recorded state yields an empty map, not an error.
func (r *DeviceSQLite) GetState(ctx context.Context, userID, deviceID string) (map[string]any, error) {
	doc, err := r.getDoc(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	states, _ := doc["states"].(map[string]any)
	if states == nil {
		states = map[string]any{}
	}
	return states, nil
}

// Add stores a new device document verbatim. The document id comes from the
// "deviceId" key (provisioning payload shape) or "id" as a fallback.
func (r *DeviceSQLite) Add(ctx context.Context, userID string, doc map[string]any) (string, error) {
	deviceID, _ := doc["deviceId"].(string)
	if deviceID == "" {
		deviceID, _ = doc["id"].(string)
	}
	if deviceID == "" {
		return "", errors.New("device document has no deviceId")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode device %q: %w", deviceID, err)
	}
	if _, err := r.db.ExecContext(ctx, insertDeviceSQL, userID, deviceID, string(raw)); err != nil {
		return "", fmt.Errorf("insert device %q for user %q: %w", deviceID, userID, err)
	}
	return deviceID, nil
}

// Update applies a structured patch to one document inside a transaction:
// read, merge, write back. Missing rows surface as ErrDeviceNotFound.
func (r *DeviceSQLite) Update(ctx context.Context, userID, deviceID string, patch models.DevicePatch) error {
	if patch.IsZero() {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin device update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	if err := tx.QueryRowContext(ctx, selectDeviceSQL, userID, deviceID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("select device %q: %w", deviceID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decode device %q: %w", deviceID, err)
	}

	applyPatch(doc, patch)

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode device %q: %w", deviceID, err)
	}
	if _, err := tx.ExecContext(ctx, updateDeviceSQL, string(merged), userID, deviceID); err != nil {
		return fmt.Errorf("update device %q: %w", deviceID, err)
	}
	return tx.Commit()
}

func (r *DeviceSQLite) Delete(ctx context.Context, userID, deviceID string) error {
	if _, err := r.db.ExecContext(ctx, deleteDeviceSQL, userID, deviceID); err != nil {
		return fmt.Errorf("delete device %q for user %q: %w", deviceID, userID, err)
	}
	return nil
}

func (r *DeviceSQLite) getDoc(ctx context.Context, userID, deviceID string) (map[string]any, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, selectDeviceSQL, userID, deviceID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("select device %q for user %q: %w", deviceID, userID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode device %q: %w", deviceID, err)
	}
	return doc, nil
}

// applyPatch merges a DevicePatch into a raw document map.
func applyPatch(doc map[string]any, patch models.DevicePatch) {
	for field, value := range patch.Fields {
		if value == nil {
			delete(doc, field)
			continue
		}
		doc[field] = *value
	}
	if patch.States != nil {
		doc["states"] = patch.States
	}
	if len(patch.StatePaths) == 0 {
		return
	}
	states, _ := doc["states"].(map[string]any)
	if states == nil {
		states = map[string]any{}
		doc["states"] = states
	}
	for path, value := range patch.StatePaths {
		setPath(states, path, value)
	}
}

// setPath writes value at a dotted path, creating intermediate maps as
// needed. A nil value deletes the leaf.
func setPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	for _, key := range parts[:len(parts)-1] {
		child, ok := m[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[key] = child
		}
		m = child
	}
	leaf := parts[len(parts)-1]
	if value == nil {
		delete(m, leaf)
		return
	}
	m[leaf] = value
}
