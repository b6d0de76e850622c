package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// lookupImage resolves an AMI by owner and name pattern, picking the most
// recently created match. It owns nothing; create is only a lookup so other
// resources can reference its id.
func (p *Provider) lookupImage(ctx context.Context, client *ec2.Client, attrs map[string]any) (string, map[string]any, error) {
	owner := stringAttr(attrs, "owner")
	if owner == "" {
		owner = "amazon"
	}
	pattern := stringAttr(attrs, "name_pattern")
	if pattern == "" {
		return "", nil, fmt.Errorf("image lookup requires name_pattern")
	}
	arch := stringAttr(attrs, "architecture")
	if arch == "" {
		arch = "x86_64"
	}

	resp, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{owner},
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{pattern}},
			{Name: aws.String("architecture"), Values: []string{arch}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up image %q: %w", pattern, err)
	}
	if len(resp.Images) == 0 {
		return "", nil, fmt.Errorf("no image matches %q for owner %s", pattern, owner)
	}

	images := resp.Images
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})
	img := images[0]

	id := aws.ToString(img.ImageId)
	outputs := map[string]any{
		"id":            id,
		"name":          aws.ToString(img.Name),
		"creation_date": aws.ToString(img.CreationDate),
		"description":   aws.ToString(img.Description),
	}
	return id, outputs, nil
}

func (p *Provider) readImage(ctx context.Context, client *ec2.Client, id string) (map[string]any, bool, error) {
	resp, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{id},
	})
	if err != nil {
		if isNotFound(err, "InvalidAMIID.NotFound") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe image %s: %w", id, err)
	}
	if len(resp.Images) == 0 {
		return nil, false, nil
	}

	img := resp.Images[0]
	return map[string]any{
		"id":            aws.ToString(img.ImageId),
		"name":          aws.ToString(img.Name),
		"creation_date": aws.ToString(img.CreationDate),
		"description":   aws.ToString(img.Description),
	}, true, nil
}
