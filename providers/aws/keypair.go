package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

func (p *Provider) createKeyPair(ctx context.Context, client *ec2.Client, name string, attrs map[string]any) (string, map[string]any, error) {
	keyName := stringAttr(attrs, "name")
	if keyName == "" {
		keyName = name
	}

	publicKey := stringAttr(attrs, "public_key")
	if publicKey == "" {
		return "", nil, fmt.Errorf("key pair %q requires public_key", name)
	}

	resp, err := client.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(keyName),
		PublicKeyMaterial: []byte(publicKey),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to import key pair %q: %w", keyName, err)
	}

	outputs := map[string]any{
		"id":          aws.ToString(resp.KeyPairId),
		"name":        keyName,
		"fingerprint": aws.ToString(resp.KeyFingerprint),
	}
	return aws.ToString(resp.KeyPairId), outputs, nil
}

func (p *Provider) readKeyPair(ctx context.Context, client *ec2.Client, id string) (map[string]any, bool, error) {
	resp, err := client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		KeyPairIds: []string{id},
	})
	if err != nil {
		if isNotFound(err, "InvalidKeyPair.NotFound") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe key pair %s: %w", id, err)
	}
	if len(resp.KeyPairs) == 0 {
		return nil, false, nil
	}

	kp := resp.KeyPairs[0]
	return map[string]any{
		"id":          aws.ToString(kp.KeyPairId),
		"name":        aws.ToString(kp.KeyName),
		"fingerprint": aws.ToString(kp.KeyFingerprint),
	}, true, nil
}

func (p *Provider) deleteKeyPair(ctx context.Context, client *ec2.Client, id string) error {
	_, err := client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyPairId: aws.String(id),
	})
	if err != nil {
		if isNotFound(err, "InvalidKeyPair.NotFound") {
			return nil
		}
		return fmt.Errorf("failed to delete key pair %s: %w", id, err)
	}
	return nil
}
