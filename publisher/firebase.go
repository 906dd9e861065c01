package publisher

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"thomas-leister.de/greenhouse/sensor"
)

// FirebasePublisher appends every reading to history/<device> and overwrites current/<device>
// in the Firebase Realtime Database.
type FirebasePublisher struct {
	client *db.Client
	device string
}

func NewFirebasePublisher(ctx context.Context, databaseURL, credentialsFile, device string) (*FirebasePublisher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: databaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}
	return &FirebasePublisher{client: client, device: device}, nil
}

func historyPath(device string) string {
	return "history/" + device
}

func currentPath(device string) string {
	return "current/" + device
}

func (f *FirebasePublisher) Publish(ctx context.Context, reading sensor.Reading) error {
	record := NewRecord(f.device, reading, time.Now())
	if _, err := f.client.NewRef(historyPath(f.device)).Push(ctx, record); err != nil {
		return fmt.Errorf("firebase push failed: %w", err)
	}
	if err := f.client.NewRef(currentPath(f.device)).Set(ctx, record); err != nil {
		return fmt.Errorf("firebase set failed: %w", err)
	}
	return nil
}
