package aws

import (
	"context"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaInstance(t *testing.T) {
	p := New()
	s, err := p.Schema(KindInstance)
	require.NoError(t, err)

	assert.True(t, s.ForcesNew("image_id"))
	assert.False(t, s.ForcesNew("tags"))
	assert.True(t, s.IsSet("security_group_ids"))
	assert.True(t, s.IsComputed("public_ip"))
}

func TestSchemaSecurityGroup(t *testing.T) {
	p := New()
	s, err := p.Schema(KindSecurityGroup)
	require.NoError(t, err)

	assert.True(t, s.IsSet("ingress"))
	assert.True(t, s.IsSet("egress"))
	assert.True(t, s.ForcesNew("vpc_id"))
}

func TestSchemaUnknownKind(t *testing.T) {
	p := New()
	_, err := p.Schema("aws.rds.Database")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not handle")
}

func TestOperationsRequireConfigure(t *testing.T) {
	p := New()
	ctx := context.Background()

	_, _, err := p.Create(ctx, KindInstance, "web", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")

	err = p.Delete(ctx, KindInstance, "i-123", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestRulePermissionsDecoding(t *testing.T) {
	attrs := map[string]any{
		"ingress": []any{
			map[string]any{"port": int64(80), "cidr": "0.0.0.0/0"},
			map[string]any{"protocol": "udp", "from_port": int64(1000), "to_port": int64(2000), "cidr": "10.0.0.0/8"},
		},
	}

	perms := rulePermissions(attrs, "ingress")
	require.Len(t, perms, 2)

	assert.Equal(t, "tcp", awssdk.ToString(perms[0].IpProtocol))
	assert.Equal(t, int32(80), awssdk.ToInt32(perms[0].FromPort))
	assert.Equal(t, int32(80), awssdk.ToInt32(perms[0].ToPort))
	assert.Equal(t, "0.0.0.0/0", awssdk.ToString(perms[0].IpRanges[0].CidrIp))

	assert.Equal(t, "udp", awssdk.ToString(perms[1].IpProtocol))
	assert.Equal(t, int32(1000), awssdk.ToInt32(perms[1].FromPort))
	assert.Equal(t, int32(2000), awssdk.ToInt32(perms[1].ToPort))
}

func TestRulePermissionsFloatPortsFromReloadedState(t *testing.T) {
	attrs := map[string]any{
		"ingress": []any{
			map[string]any{"port": float64(443), "cidr": "0.0.0.0/0"},
		},
	}

	perms := rulePermissions(attrs, "ingress")
	require.Len(t, perms, 1)
	assert.Equal(t, int32(443), awssdk.ToInt32(perms[0].FromPort))
}

func TestPermissionsDiff(t *testing.T) {
	prev := rulePermissions(map[string]any{"r": []any{
		map[string]any{"port": int64(22), "cidr": "0.0.0.0/0"},
		map[string]any{"port": int64(80), "cidr": "0.0.0.0/0"},
	}}, "r")
	next := rulePermissions(map[string]any{"r": []any{
		map[string]any{"port": int64(80), "cidr": "0.0.0.0/0"},
		map[string]any{"port": int64(443), "cidr": "0.0.0.0/0"},
	}}, "r")

	stale := permissionsDiff(prev, next)
	require.Len(t, stale, 1)
	assert.Equal(t, int32(22), awssdk.ToInt32(stale[0].FromPort))

	add := permissionsDiff(next, prev)
	require.Len(t, add, 1)
	assert.Equal(t, int32(443), awssdk.ToInt32(add[0].FromPort))
}

func TestAttrHelpers(t *testing.T) {
	attrs := map[string]any{
		"name":   "web",
		"tags":   map[string]any{"env": "dev", "skip": int64(1)},
		"groups": []any{"sg-1", "sg-2"},
	}

	assert.Equal(t, "web", stringAttr(attrs, "name"))
	assert.Empty(t, stringAttr(attrs, "missing"))
	assert.Equal(t, map[string]string{"env": "dev"}, stringMapAttr(attrs, "tags"))
	assert.Equal(t, []string{"sg-1", "sg-2"}, stringSliceAttr(attrs, "groups"))
}

func TestEC2Tags(t *testing.T) {
	tags := ec2Tags(map[string]string{"Name": "web"})
	require.Len(t, tags, 1)
	assert.Equal(t, "Name", awssdk.ToString(tags[0].Key))
	assert.Equal(t, "web", awssdk.ToString(tags[0].Value))
}
