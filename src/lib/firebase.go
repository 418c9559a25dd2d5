package lib

import (
	"context"
	"fmt"
	"os"
	"path"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var innerApp *firebase.App
var innerMessaging *messaging.Client

func getOpts() option.ClientOption {
	secretsPath := os.Getenv("SECRETS_DIR")
	return option.WithCredentialsFile(path.Join(secretsPath, "admin-sdk-credentials.json"))
}

func GetFirebaseMessaging(ctx context.Context) (*messaging.Client, error) {
	if innerMessaging != nil {
		return innerMessaging, nil
	}
	if innerApp == nil {
		app, err := firebase.NewApp(ctx, nil, getOpts())
		if err != nil {
			return nil, fmt.Errorf("initializing firebase app: %w", err)
		}
		innerApp = app
	}
	msg, err := innerApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing fcm: %w", err)
	}
	innerMessaging = msg
	return msg, nil
}

// FCMAlerter pushes staff alerts to an FCM topic the staff app subscribes to.
type FCMAlerter struct {
	client *messaging.Client
	topic  string
}

func NewFCMAlerter(client *messaging.Client, topic string) *FCMAlerter {
	return &FCMAlerter{client: client, topic: topic}
}

func (a *FCMAlerter) Alert(ctx context.Context, subject, body string) error {
	_, err := a.client.Send(ctx, &messaging.Message{
		Topic: a.topic,
		Notification: &messaging.Notification{
			Title: subject,
			Body:  body,
		},
		Data: map[string]string{"kind": "checkin_alert"},
	})
	if err != nil {
		return fmt.Errorf("fcm send to %s: %w", a.topic, err)
	}
	return nil
}
