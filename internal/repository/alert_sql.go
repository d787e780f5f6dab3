package repository

import (
	"context"
	"errors"
	"time"

	"fleet-alerts/internal/models"

	"gorm.io/gorm"
)

// SQLAlertRepository stores alerts in PostgreSQL or SQLite through gorm. It
// offers the same operations as AlertRepository.
type SQLAlertRepository struct {
	db *gorm.DB
}

func NewSQLAlertRepository(db *gorm.DB) *SQLAlertRepository {
	return &SQLAlertRepository{db: db}
}

func (r *SQLAlertRepository) Find(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx := r.db.WithContext(ctx).Model(&models.Alert{})
	if filter.Type != nil {
		tx = tx.Where("alert_type = ?", string(*filter.Type))
	}
	switch {
	case filter.Status != nil:
		tx = tx.Where("status = ?", string(*filter.Status))
	case filter.OpenOnly:
		tx = tx.Where("status <> ?", string(models.AlertStatusResolved))
	}

	alerts := []*models.Alert{}
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *SQLAlertRepository) FindByID(ctx context.Context, id int64) (*models.Alert, error) {
	if id <= 0 {
		return nil, ErrInvalidAlertID
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var alert models.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func (r *SQLAlertRepository) FindOpenByType(ctx context.Context, alertType models.AlertType) ([]*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var alerts []*models.Alert
	err := r.db.WithContext(ctx).
		Where("alert_type = ? AND status <> ?", string(alertType), string(models.AlertStatusResolved)).
		Order("id ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *SQLAlertRepository) Save(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	saved := *alert
	if saved.ID == 0 {
		if err := r.db.WithContext(ctx).Create(&saved).Error; err != nil {
			return nil, err
		}
		return &saved, nil
	}

	result := r.db.WithContext(ctx).Model(&saved).Select("*").Updates(&saved)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlertNotFound
	}
	return &saved, nil
}

func (r *SQLAlertRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result := r.db.WithContext(ctx).
		Where("status = ? AND resolved_at < ?", string(models.AlertStatusResolved), cutoff).
		Delete(&models.Alert{})
	return result.RowsAffected, result.Error
}

func (r *SQLAlertRepository) Stats(ctx context.Context) (*models.AlertStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []struct {
		Status   string
		Severity string
		Count    int
	}
	err := r.db.WithContext(ctx).Model(&models.Alert{}).
		Select("status, severity, COUNT(*) AS count").
		Group("status, severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var stats models.AlertStats
	for _, row := range rows {
		addStatusCount(&stats, models.AlertStatus(row.Status), models.Severity(row.Severity), row.Count)
	}
	return &stats, nil
}

func (r *SQLAlertRepository) CountOpenByType(ctx context.Context) (map[models.AlertType]int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []struct {
		AlertType string
		Count     int
	}
	err := r.db.WithContext(ctx).Model(&models.Alert{}).
		Select("alert_type, COUNT(*) AS count").
		Where("status <> ?", string(models.AlertStatusResolved)).
		Group("alert_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.AlertType]int, len(rows))
	for _, row := range rows {
		counts[models.AlertType(row.AlertType)] = row.Count
	}
	return counts, nil
}
