package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

// ==========================
// SES
// ==========================

func TestBuildSendEmailInput(t *testing.T) {
	in := BuildSendEmailInput("noreply@caringcompass.example", Email{
		To:      []string{"coord@caringcompass.example"},
		Subject: "Caregiver matching results for Visit v-1",
		HTML:    "<h2>Caregiver Matching Results</h2>",
	})

	assert.Equal(t, "noreply@caringcompass.example", awssdk.ToString(in.Source))
	assert.Equal(t, []string{"coord@caringcompass.example"}, in.Destination.ToAddresses)
	assert.Equal(t, "Caregiver matching results for Visit v-1", awssdk.ToString(in.Message.Subject.Data))
	assert.Equal(t, "<h2>Caregiver Matching Results</h2>", awssdk.ToString(in.Message.Body.Html.Data))
	assert.Nil(t, in.Message.Body.Text)
}

func TestSESClient_Send(t *testing.T) {
	var captured *ses.SendEmailInput
	client := NewSESClientWithAPI(&MockSESService{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: awssdk.String("msg-1")}, nil
		},
	}, "noreply@caringcompass.example")

	id, err := client.Send(context.Background(), Email{To: []string{"a@b.example"}, Subject: "s", Text: "t"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.NotNil(t, captured)
	assert.Equal(t, "t", awssdk.ToString(captured.Message.Body.Text.Data))
}

func TestSESClient_SendErrors(t *testing.T) {
	sendErr := errors.New("throttled")
	client := NewSESClientWithAPI(&MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, sendErr
		},
	}, "noreply@caringcompass.example")

	_, err := client.Send(context.Background(), Email{To: []string{"a@b.example"}})
	assert.ErrorIs(t, err, sendErr)

	_, err = client.Send(context.Background(), Email{})
	assert.Error(t, err)
}

// ==========================
// SNS
// ==========================

func TestSNSClient_SendSMS(t *testing.T) {
	var captured *sns.PublishInput
	client := NewSNSClientWithAPI(&MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{MessageId: awssdk.String("sms-1")}, nil
		},
	}, "CARECOMP")

	id, err := client.SendSMS(context.Background(), "+15555550100", "You have been assigned a visit")
	require.NoError(t, err)
	assert.Equal(t, "sms-1", id)
	assert.Equal(t, "+15555550100", awssdk.ToString(captured.PhoneNumber))
	assert.Equal(t, "CARECOMP", awssdk.ToString(captured.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
	assert.Equal(t, "Transactional", awssdk.ToString(captured.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
}

func TestSNSClient_SendSMSRequiresPhone(t *testing.T) {
	called := false
	client := NewSNSClientWithAPI(&MockSNSService{
		PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
			called = true
			return &sns.PublishOutput{}, nil
		},
	}, "")

	_, err := client.SendSMS(context.Background(), "", "hi")
	assert.Error(t, err)
	assert.False(t, called)
}
