package services

import (
	"context"
	"fmt"

	"outfitapi/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"
)

type PushSender interface {
	Send(ctx context.Context, userID uint, title, body string, data map[string]string) error
}

// FirebasePushSender delivers to every active token of the user and disables
// tokens FCM reports as unregistered.
type FirebasePushSender struct {
	App *firebase.App
	DB  *gorm.DB
}

func stringMapToInterfaceMap(stringMap map[string]string) map[string]interface{} {
	interfaceMap := make(map[string]interface{}, len(stringMap))
	for key, value := range stringMap {
		interfaceMap[key] = value
	}
	return interfaceMap
}

func (s *FirebasePushSender) Send(ctx context.Context, userID uint, title, body string, data map[string]string) error {
	var user models.UserAccount
	if err := s.DB.WithContext(ctx).Select("id", "receive_notifications").First(&user, userID).Error; err != nil {
		return err
	}
	if !user.ReceiveNotifications {
		return nil
	}
	var tokens []models.UserPushToken
	if err := s.DB.WithContext(ctx).Where("user_account_id = ? and active = ?", userID, true).Find(&tokens).Error; err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	client, err := s.App.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("firebase messaging: %w", err)
	}

	var iosCustomData map[string]interface{}
	if data != nil {
		iosCustomData = stringMapToInterfaceMap(data)
	}
	messages := make([]*messaging.Message, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, &messaging.Message{
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{
						Alert: &messaging.ApsAlert{Title: title, Body: body},
						Sound: "default",
					},
					CustomData: iosCustomData,
				},
			},
			Android: &messaging.AndroidConfig{
				Notification: &messaging.AndroidNotification{
					Priority:  messaging.PriorityHigh,
					ChannelID: "outfits-default",
				},
				Data: data,
			},
			Token: token.Token,
		})
	}

	br, err := client.SendEach(ctx, messages)
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("push to user %d: %w", userID, err)
	}
	for i, resp := range br.Responses {
		if resp.Success {
			continue
		}
		fmt.Println("[Push] failed for token", tokens[i].ID, resp.Error)
		if messaging.IsRegistrationTokenNotRegistered(resp.Error) {
			s.DB.Model(&models.UserPushToken{}).Where("id = ?", tokens[i].ID).Update("active", false)
		}
	}
	fmt.Printf("[Push] user %d: %d sent, %d failed\n", userID, br.SuccessCount, br.FailureCount)
	return nil
}
