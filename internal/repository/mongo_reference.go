package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

func (s *MongoStore) FindUserByID(ctx context.Context, id utils.SixID) (*models.User, error) {
	var user models.User
	if err := s.findOne(ctx, colUsers, bson.D{{Key: "_id", Value: id}, notDeleted}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) FindPropertyByID(ctx context.Context, id utils.SixID) (*models.Property, error) {
	var property models.Property
	if err := s.findOne(ctx, colProperties, bson.D{{Key: "_id", Value: id}, notDeleted}, &property); err != nil {
		return nil, err
	}
	return &property, nil
}

func (s *MongoStore) ListPropertyDates(ctx context.Context, propertyID utils.SixID, from, to string) ([]models.PropertyDate, error) {
	filter := bson.M{
		"property_id": propertyID,
		"date":        bson.M{"$gte": from, "$lte": to},
	}
	dates := []models.PropertyDate{}
	if err := s.findAll(ctx, colPropertyDates, filter, &dates, options.Find().SetSort(bson.D{{Key: "date", Value: 1}})); err != nil {
		return nil, err
	}
	return dates, nil
}

func (s *MongoStore) FindCurrency(ctx context.Context, code string) (*models.Currency, error) {
	var currency models.Currency
	if err := s.findOne(ctx, colCurrencies, bson.M{"code": code}, &currency); err != nil {
		return nil, err
	}
	return &currency, nil
}

func (s *MongoStore) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	return s.insert(ctx, colAuditLogs, entry, "audit entry")
}

func (s *MongoStore) FindEmailTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	var template models.EmailTemplate
	if err := s.findOne(ctx, colEmailTemplates, bson.M{"template_id": templateID, "locale": locale}, &template); err != nil {
		return nil, err
	}
	return &template, nil
}

// SaveEmailTemplate upserts by (template_id, locale).
func (s *MongoStore) SaveEmailTemplate(ctx context.Context, template *models.EmailTemplate) error {
	template.GenIDIfEmpty()
	filter := bson.M{"template_id": template.TemplateID, "locale": template.Locale}
	update := bson.M{
		"$set":         bson.M{"subject": template.Subject, "body": template.Body},
		"$setOnInsert": bson.M{"_id": template.ID},
	}
	if _, err := s.col(colEmailTemplates).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save email template: %w", err)
	}
	return nil
}
