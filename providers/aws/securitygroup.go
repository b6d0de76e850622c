package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

func (p *Provider) createSecurityGroup(ctx context.Context, client *ec2.Client, name string, attrs map[string]any) (string, map[string]any, error) {
	groupName := stringAttr(attrs, "name")
	if groupName == "" {
		groupName = name
	}
	description := stringAttr(attrs, "description")
	if description == "" {
		description = "managed by groundwork"
	}

	input := &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(groupName),
		Description: aws.String(description),
	}
	if vpcID := stringAttr(attrs, "vpc_id"); vpcID != "" {
		input.VpcId = aws.String(vpcID)
	}

	resp, err := client.CreateSecurityGroup(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create security group %q: %w", groupName, err)
	}
	id := aws.ToString(resp.GroupId)

	if err := p.syncRules(ctx, client, id, attrs, nil); err != nil {
		return id, nil, err
	}

	outputs := map[string]any{
		"id":          id,
		"name":        groupName,
		"description": description,
	}
	if ingress, ok := attrs["ingress"]; ok {
		outputs["ingress"] = ingress
	}
	if egress, ok := attrs["egress"]; ok {
		outputs["egress"] = egress
	}
	return id, outputs, nil
}

func (p *Provider) readSecurityGroup(ctx context.Context, client *ec2.Client, id string) (map[string]any, bool, error) {
	resp, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{id},
	})
	if err != nil {
		if isNotFound(err, "InvalidGroup.NotFound") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe security group %s: %w", id, err)
	}
	if len(resp.SecurityGroups) == 0 {
		return nil, false, nil
	}

	sg := resp.SecurityGroups[0]
	outputs := map[string]any{
		"id":          aws.ToString(sg.GroupId),
		"name":        aws.ToString(sg.GroupName),
		"description": aws.ToString(sg.Description),
		"ingress":     permissionsToAttrs(sg.IpPermissions),
		"egress":      permissionsToAttrs(sg.IpPermissionsEgress),
	}
	if sg.VpcId != nil {
		outputs["vpc_id"] = aws.ToString(sg.VpcId)
	}
	return outputs, true, nil
}

// updateSecurityGroup reconciles rule sets in place. Name, description and
// VPC are ForceNew.
func (p *Provider) updateSecurityGroup(ctx context.Context, client *ec2.Client, id string, attrs, prior map[string]any) (map[string]any, error) {
	if err := p.syncRules(ctx, client, id, attrs, prior); err != nil {
		return nil, err
	}

	outputs, exists, err := p.readSecurityGroup(ctx, client, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("security group %s no longer exists", id)
	}
	return outputs, nil
}

func (p *Provider) deleteSecurityGroup(ctx context.Context, client *ec2.Client, id string) error {
	_, err := client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(id),
	})
	if err != nil {
		if isNotFound(err, "InvalidGroup.NotFound") {
			return nil
		}
		return fmt.Errorf("failed to delete security group %s: %w", id, err)
	}
	return nil
}

// syncRules revokes prior rules that dropped out of the desired set and
// authorizes the new ones.
func (p *Provider) syncRules(ctx context.Context, client *ec2.Client, id string, attrs, prior map[string]any) error {
	for _, dir := range []string{"ingress", "egress"} {
		desired := rulePermissions(attrs, dir)
		previous := rulePermissions(prior, dir)

		stale := permissionsDiff(previous, desired)
		add := permissionsDiff(desired, previous)

		if len(stale) > 0 {
			if dir == "ingress" {
				_, err := client.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
					GroupId: aws.String(id), IpPermissions: stale,
				})
				if err != nil {
					return fmt.Errorf("failed to revoke ingress on %s: %w", id, err)
				}
			} else {
				_, err := client.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
					GroupId: aws.String(id), IpPermissions: stale,
				})
				if err != nil {
					return fmt.Errorf("failed to revoke egress on %s: %w", id, err)
				}
			}
		}
		if len(add) > 0 {
			if dir == "ingress" {
				_, err := client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
					GroupId: aws.String(id), IpPermissions: add,
				})
				if err != nil {
					return fmt.Errorf("failed to authorize ingress on %s: %w", id, err)
				}
			} else {
				_, err := client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
					GroupId: aws.String(id), IpPermissions: add,
				})
				if err != nil {
					return fmt.Errorf("failed to authorize egress on %s: %w", id, err)
				}
			}
		}
	}
	return nil
}

// rulePermissions decodes a rule list attribute. Each rule is an object with
// protocol, port (or from_port/to_port) and cidr.
func rulePermissions(attrs map[string]any, key string) []types.IpPermission {
	if attrs == nil {
		return nil
	}
	raw, ok := attrs[key].([]any)
	if !ok {
		return nil
	}

	perms := make([]types.IpPermission, 0, len(raw))
	for _, r := range raw {
		rule, ok := r.(map[string]any)
		if !ok {
			continue
		}
		perm := types.IpPermission{}

		protocol := stringAttr(rule, "protocol")
		if protocol == "" {
			protocol = "tcp"
		}
		perm.IpProtocol = aws.String(protocol)

		if port, ok := intAttr(rule, "port"); ok {
			perm.FromPort = aws.Int32(port)
			perm.ToPort = aws.Int32(port)
		}
		if from, ok := intAttr(rule, "from_port"); ok {
			perm.FromPort = aws.Int32(from)
		}
		if to, ok := intAttr(rule, "to_port"); ok {
			perm.ToPort = aws.Int32(to)
		}

		cidr := stringAttr(rule, "cidr")
		if cidr == "" {
			cidr = "0.0.0.0/0"
		}
		perm.IpRanges = []types.IpRange{{CidrIp: aws.String(cidr)}}

		perms = append(perms, perm)
	}
	return perms
}

// permissionsDiff returns members of a that have no equal member in b.
func permissionsDiff(a, b []types.IpPermission) []types.IpPermission {
	var out []types.IpPermission
	for _, pa := range a {
		found := false
		for _, pb := range b {
			if permissionEqual(pa, pb) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, pa)
		}
	}
	return out
}

func permissionEqual(a, b types.IpPermission) bool {
	if aws.ToString(a.IpProtocol) != aws.ToString(b.IpProtocol) ||
		aws.ToInt32(a.FromPort) != aws.ToInt32(b.FromPort) ||
		aws.ToInt32(a.ToPort) != aws.ToInt32(b.ToPort) {
		return false
	}
	if len(a.IpRanges) != len(b.IpRanges) {
		return false
	}
	for i := range a.IpRanges {
		if aws.ToString(a.IpRanges[i].CidrIp) != aws.ToString(b.IpRanges[i].CidrIp) {
			return false
		}
	}
	return true
}

func permissionsToAttrs(perms []types.IpPermission) []any {
	out := make([]any, 0, len(perms))
	for _, perm := range perms {
		rule := map[string]any{
			"protocol": aws.ToString(perm.IpProtocol),
		}
		if perm.FromPort != nil {
			rule["from_port"] = int64(aws.ToInt32(perm.FromPort))
		}
		if perm.ToPort != nil {
			rule["to_port"] = int64(aws.ToInt32(perm.ToPort))
		}
		if len(perm.IpRanges) > 0 {
			rule["cidr"] = aws.ToString(perm.IpRanges[0].CidrIp)
		}
		out = append(out, rule)
	}
	return out
}
