// record_store.go
//
// Stepio record service: the per-family health routine store behind the Stepio apps
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of stepio.
// stepio is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// stepio is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with stepio.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/hints"

	"github.com/localnerve/stepio/internal/models"
)

var (
	// ErrNotFound is returned when a user has no stored record.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when the stored record moved past the
	// version a write was based on.
	ErrVersionConflict = errors.New("E_VERSION")
)

// RecordStore persists one JSON document per user in the stepio_records table.
type RecordStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRecordStore creates a RecordStore over db.
func NewRecordStore(db *gorm.DB, logger *zap.Logger) *RecordStore {
	return &RecordStore{db: db, logger: logger}
}

func (r *RecordStore) quiet(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Session(&gorm.Session{Logger: r.db.Logger.LogMode(logger.Silent)})
}

// GetDocument returns the stored document of userID and its version.
func (r *RecordStore) GetDocument(ctx context.Context, userID string) ([]byte, uint64, error) {
	var row models.StepioRecord
	err := r.quiet(ctx).
		Clauses(hints.Comment("select", "stepio:get_record")).
		Where("user_id = ?", userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get record: %w", err)
	}
	return row.Data.Bytes(), row.RecordVersion, nil
}

// PutDocument writes doc for userID and returns the new version. With merge
// the top-level keys of doc replace those of the stored document and every
// other key is kept. A non-nil expected version must match the stored one;
// zero means the record must not exist yet.
func (r *RecordStore) PutDocument(ctx context.Context, userID string, doc []byte, merge bool, expected *uint64) (uint64, error) {
	var next map[string]json.RawMessage
	if err := json.Unmarshal(doc, &next); err != nil {
		return 0, fmt.Errorf("document must be a JSON object: %w", err)
	}

	var newVersion uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.StepioRecord
		err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&row).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			if expected != nil && *expected != 0 {
				return ErrVersionConflict
			}
			row = models.StepioRecord{UserID: userID, RecordVersion: 1, Data: models.NewJSON(doc)}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			newVersion = row.RecordVersion
			return nil
		}
		if err != nil {
			return err
		}
		if expected != nil && *expected != row.RecordVersion {
			return ErrVersionConflict
		}

		data := doc
		if merge {
			if data, err = mergeTopLevel(row.Data.Bytes(), next); err != nil {
				return err
			}
		}

		newVersion = row.RecordVersion + 1
		result := tx.Model(&row).
			Where("record_version = ?", row.RecordVersion).
			Updates(map[string]interface{}{
				"record_version": newVersion,
				"data":           models.NewJSON(data),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w - failed to update record due to concurrent modification", ErrVersionConflict)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

// mergeTopLevel overlays next onto the stored document. A stored value that
// is not a JSON object is replaced.
func mergeTopLevel(stored []byte, next map[string]json.RawMessage) ([]byte, error) {
	base := make(map[string]json.RawMessage)
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &base); err != nil {
			base = make(map[string]json.RawMessage)
		}
	}
	for k, v := range next {
		base[k] = v
	}
	return json.Marshal(base)
}

// Get loads the record of userID. A missing row reports found=false.
func (r *RecordStore) Get(ctx context.Context, userID string) (models.RawRecord, bool, error) {
	doc, _, err := r.GetDocument(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.RawRecord{}, false, nil
	}
	if err != nil {
		return models.RawRecord{}, false, err
	}
	return models.ParseRawRecord(doc), true, nil
}

// Put writes rec for userID.
func (r *RecordStore) Put(ctx context.Context, userID string, rec models.Record, merge bool) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	version, err := r.PutDocument(ctx, userID, doc, merge, nil)
	if err != nil {
		return err
	}
	r.logger.Debug("record stored", zap.String("user_id", userID), zap.Uint64("version", version))
	return nil
}

// SetPlan stores the subscription plan reported by billing, leaving the rest
// of the record untouched.
func (r *RecordStore) SetPlan(ctx context.Context, userID string, plan models.SubscriptionPlan) error {
	doc, err := json.Marshal(map[string]models.SubscriptionPlan{"plan": plan})
	if err != nil {
		return err
	}
	_, err = r.PutDocument(ctx, userID, doc, true, nil)
	return err
}

// Delete removes the record of userID.
func (r *RecordStore) Delete(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.StepioRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete record: %w", result.Error)
	}
	return result.RowsAffected, nil
}
