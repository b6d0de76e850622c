package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

const instanceWaitTimeout = 5 * time.Minute

func (p *Provider) createInstance(ctx context.Context, client *ec2.Client, name string, attrs map[string]any) (string, map[string]any, error) {
	imageID := stringAttr(attrs, "image_id")
	if imageID == "" {
		return "", nil, fmt.Errorf("instance %q requires image_id", name)
	}
	instanceType := stringAttr(attrs, "instance_type")
	if instanceType == "" {
		instanceType = "t3.micro"
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(imageID),
		InstanceType: types.InstanceType(instanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
	}
	if keyName := stringAttr(attrs, "key_name"); keyName != "" {
		input.KeyName = aws.String(keyName)
	}
	if subnet := stringAttr(attrs, "subnet_id"); subnet != "" {
		input.SubnetId = aws.String(subnet)
	}
	if groups := stringSliceAttr(attrs, "security_group_ids"); len(groups) > 0 {
		input.SecurityGroupIds = groups
	}
	if userData := stringAttr(attrs, "user_data"); userData != "" {
		input.UserData = aws.String(userData)
	}

	tags := stringMapAttr(attrs, "tags")
	if tags == nil {
		tags = map[string]string{}
	}
	if _, ok := tags["Name"]; !ok {
		tags["Name"] = name
	}
	input.TagSpecifications = []types.TagSpecification{{
		ResourceType: types.ResourceTypeInstance,
		Tags:         ec2Tags(tags),
	}}

	resp, err := client.RunInstances(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to run instance: %w", err)
	}
	if len(resp.Instances) == 0 {
		return "", nil, fmt.Errorf("no instances created")
	}
	id := aws.ToString(resp.Instances[0].InstanceId)

	waiter := ec2.NewInstanceRunningWaiter(client)
	describeInput := &ec2.DescribeInstancesInput{InstanceIds: []string{id}}
	if err := waiter.Wait(ctx, describeInput, instanceWaitTimeout); err != nil {
		return id, nil, fmt.Errorf("instance %s never reached running: %w", id, err)
	}

	// Describe again: IPs are only assigned once running.
	outputs, _, err := p.readInstance(ctx, client, id)
	if err != nil {
		return id, nil, err
	}
	return id, outputs, nil
}

func (p *Provider) readInstance(ctx context.Context, client *ec2.Client, id string) (map[string]any, bool, error) {
	resp, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if isNotFound(err, "InvalidInstanceID.NotFound") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}
	if len(resp.Reservations) == 0 || len(resp.Reservations[0].Instances) == 0 {
		return nil, false, nil
	}

	inst := resp.Reservations[0].Instances[0]
	if inst.State != nil && inst.State.Name == types.InstanceStateNameTerminated {
		return nil, false, nil
	}

	outputs := map[string]any{
		"id":            aws.ToString(inst.InstanceId),
		"image_id":      aws.ToString(inst.ImageId),
		"instance_type": string(inst.InstanceType),
		"private_ip":    aws.ToString(inst.PrivateIpAddress),
		"public_ip":     aws.ToString(inst.PublicIpAddress),
	}
	if inst.State != nil {
		outputs["state"] = string(inst.State.Name)
	}
	return outputs, true, nil
}

// updateInstance handles the mutable surface: tags. Everything else on an
// instance is ForceNew.
func (p *Provider) updateInstance(ctx context.Context, client *ec2.Client, id string, attrs, prior map[string]any) (map[string]any, error) {
	if tags := stringMapAttr(attrs, "tags"); len(tags) > 0 {
		_, err := client.CreateTags(ctx, &ec2.CreateTagsInput{
			Resources: []string{id},
			Tags:      ec2Tags(tags),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update tags on %s: %w", id, err)
		}
	}

	outputs, exists, err := p.readInstance(ctx, client, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("instance %s no longer exists", id)
	}
	return outputs, nil
}

func (p *Provider) deleteInstance(ctx context.Context, client *ec2.Client, id string) error {
	_, err := client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if isNotFound(err, "InvalidInstanceID.NotFound") {
			return nil
		}
		return fmt.Errorf("failed to terminate instance %s: %w", id, err)
	}

	waiter := ec2.NewInstanceTerminatedWaiter(client)
	input := &ec2.DescribeInstancesInput{InstanceIds: []string{id}}
	if err := waiter.Wait(ctx, input, instanceWaitTimeout); err != nil {
		return fmt.Errorf("instance %s never reached terminated: %w", id, err)
	}
	return nil
}

func ec2Tags(tags map[string]string) []types.Tag {
	out := make([]types.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}

func isNotFound(err error, code string) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == code
}
