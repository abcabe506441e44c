package booking

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cabinet-backend/internal/models"
	"cabinet-backend/internal/schedule"
)

// ErrSlotTaken reports a reservation race lost at write time: the slot was
// booked between the client's availability read and its write. Expected
// outcome, mapped to a conflict, never a server error.
var ErrSlotTaken = errors.New("slot already booked")

// ErrNotFound reports a missing appointment.
var ErrNotFound = errors.New("appointment not found")

// Store is the booking-store collaborator consumed by the guard and the
// availability resolver.
type Store interface {
	OccupiedIntervals(ctx context.Context, date string) ([]schedule.Interval, error)
	Exists(ctx context.Context, date, timeStr string) (bool, error)
	Insert(ctx context.Context, appt models.Appointment) error
}

// MongoStore implements Store against the appointments and reservation-block
// collections.
type MongoStore struct {
	appointments *mongo.Collection
	blocks       *mongo.Collection
}

func NewMongoStore(appointments, blocks *mongo.Collection) *MongoStore {
	return &MongoStore{appointments: appointments, blocks: blocks}
}

// OccupiedIntervals merges active appointments and manual reservation blocks
// for one date into [start, start+60) minute intervals.
func (s *MongoStore) OccupiedIntervals(ctx context.Context, date string) ([]schedule.Interval, error) {
	intervals := make([]schedule.Interval, 0)

	cursor, err := s.appointments.Find(ctx, bson.M{
		"date":   date,
		"status": bson.M{"$in": models.ActiveStatuses},
	})
	if err != nil {
		return nil, err
	}
	for cursor.Next(ctx) {
		var appt models.Appointment
		if err := cursor.Decode(&appt); err != nil {
			continue
		}
		start, err := schedule.ParseClockToMinutes(appt.Time)
		if err != nil {
			continue
		}
		intervals = append(intervals, schedule.Interval{Start: start, End: start + schedule.AppointmentMinutes})
	}
	if err := cursor.Err(); err != nil {
		cursor.Close(ctx)
		return nil, err
	}
	cursor.Close(ctx)

	blockCursor, err := s.blocks.Find(ctx, bson.M{"date": date})
	if err != nil {
		return nil, err
	}
	for blockCursor.Next(ctx) {
		var block models.ReservationBlock
		if err := blockCursor.Decode(&block); err != nil {
			continue
		}
		start, err := schedule.ParseClockToMinutes(block.Time)
		if err != nil {
			continue
		}
		intervals = append(intervals, schedule.Interval{Start: start, End: start + schedule.AppointmentMinutes})
	}
	if err := blockCursor.Err(); err != nil {
		blockCursor.Close(ctx)
		return nil, err
	}
	blockCursor.Close(ctx)

	return intervals, nil
}

// Exists is the authoritative uniqueness check for the exact (date, time)
// pair, canceled appointments excluded.
func (s *MongoStore) Exists(ctx context.Context, date, timeStr string) (bool, error) {
	err := s.appointments.FindOne(ctx, bson.M{
		"date":   date,
		"time":   timeStr,
		"status": bson.M{"$in": models.ActiveStatuses},
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoStore) Insert(ctx context.Context, appt models.Appointment) error {
	_, err := s.appointments.InsertOne(ctx, appt)
	if mongo.IsDuplicateKeyError(err) {
		return ErrSlotTaken
	}
	return err
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (models.Appointment, error) {
	var appt models.Appointment
	err := s.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&appt)
	if err == mongo.ErrNoDocuments {
		return models.Appointment{}, ErrNotFound
	}
	if err != nil {
		return models.Appointment{}, err
	}
	return appt, nil
}

// Lookup retrieves an appointment by id and booking email, for clients
// checking their own reservation without an account.
func (s *MongoStore) Lookup(ctx context.Context, id, email string) (models.Appointment, error) {
	var appt models.Appointment
	err := s.appointments.FindOne(ctx, bson.M{"_id": id, "email": email}).Decode(&appt)
	if err == mongo.ErrNoDocuments {
		return models.Appointment{}, ErrNotFound
	}
	if err != nil {
		return models.Appointment{}, err
	}
	return appt, nil
}

func (s *MongoStore) UpdateStatus(ctx context.Context, id, status string) (models.Appointment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"status": status}}

	var updated models.Appointment
	err := s.appointments.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return models.Appointment{}, ErrNotFound
	}
	if err != nil {
		return models.Appointment{}, err
	}
	return updated, nil
}

func (s *MongoStore) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	_, err := s.appointments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"calendarEventId": eventID}})
	return err
}

func (s *MongoStore) List(ctx context.Context, date string, limit, offset int64) ([]models.Appointment, error) {
	query := bson.M{}
	if date != "" {
		query["date"] = date
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := s.appointments.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Appointment, 0)
	for cursor.Next(ctx) {
		var appt models.Appointment
		if err := cursor.Decode(&appt); err != nil {
			return nil, err
		}
		items = append(items, appt)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
