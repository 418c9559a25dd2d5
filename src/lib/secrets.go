package lib

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var secretsClient *secretsmanager.Client

func AWSGetSecretsClient() (*secretsmanager.Client, error) {
	if secretsClient != nil {
		return secretsClient, nil
	}
	cfg, err := AWSConfig(context.Background())
	if err != nil {
		return nil, err
	}
	secretsClient = secretsmanager.NewFromConfig(*cfg)
	return secretsClient, nil
}

func GetSecretString(ctx context.Context, secretID string) (string, error) {
	client, err := AWSGetSecretsClient()
	if err != nil {
		return "", err
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("reading secret %s: %w", secretID, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretID)
	}
	return *out.SecretString, nil
}
