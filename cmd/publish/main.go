// Command publish puts one ROOM_MESSAGE_CREATED envelope on the events
// channel, for checking a running relay end to end.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"roomrelay/broker"
	"roomrelay/domain"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load")
	brokerURL := pflag.String("broker", "", "broker url (defaults to BROKER_URL)")
	channel := pflag.String("channel", "", "channel name (defaults to EVENTS_CHANNEL or events)")
	orgID := pflag.String("org", "", "organization id")
	roomID := pflag.String("room", "", "room id")
	userID := pflag.String("user", "", "author user id")
	body := pflag.String("body", "hello from publish", "message body")
	pflag.Parse()

	_ = godotenv.Load(*envFile)

	env, err := buildEnvelope(*orgID, *roomID, *userID, *body, time.Now())
	if err != nil {
		slog.Error("build envelope", "error", err)
		os.Exit(1)
	}

	b, err := broker.Open(firstNonEmpty(*brokerURL, os.Getenv("BROKER_URL"), "redis://localhost:6379"))
	if err != nil {
		slog.Error("open broker", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := firstNonEmpty(*channel, os.Getenv("EVENTS_CHANNEL"), "events")
	if err := b.Publish(ctx, ch, env); err != nil {
		slog.Error("publish", "error", err)
		os.Exit(1)
	}
	slog.Info("published", "eventId", env.ID, "channel", ch, "orgId", env.OrgID, "roomId", *env.RoomID)
}

func buildEnvelope(orgID, roomID, userID, body string, now time.Time) (domain.Envelope, error) {
	messageID := uuid.NewString()
	payload, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"id":        messageID,
			"roomId":    roomID,
			"body":      body,
			"createdAt": now.UTC().Format(time.RFC3339Nano),
			"author":    map[string]any{"userId": userID},
		},
	})
	if err != nil {
		return domain.Envelope{}, err
	}

	env := domain.Envelope{
		ID:      uuid.NewString(),
		Type:    domain.EventRoomMessageCreated,
		OrgID:   orgID,
		RoomID:  &roomID,
		Actor:   domain.Actor{UserID: userID},
		Payload: payload,
		Ts:      now.UnixMilli(),
	}
	if err := env.Validate(); err != nil {
		return domain.Envelope{}, err
	}
	return env, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
