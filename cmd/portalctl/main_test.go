package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SEED_ADMIN_EMAIL", "")
	t.Setenv("SEED_ADMIN_PASSWORD", "")
	t.Setenv("LOG_LEVEL", "error")
}

func TestRunUsage(t *testing.T) {
	memoryEnv(t)
	var out, errOut bytes.Buffer

	assert.True(t, errors.Is(run(context.Background(), nil, &out, &errOut), errUsage))
	assert.True(t, errors.Is(run(context.Background(), []string{"principal"}, &out, &errOut), errUsage))
	assert.True(t, errors.Is(run(context.Background(), []string{"request", "delete"}, &out, &errOut), errUsage))
	assert.True(t, errors.Is(run(context.Background(), []string{"bogus"}, &out, &errOut), errUsage))
}

func TestPrincipalCreate(t *testing.T) {
	memoryEnv(t)
	var out, errOut bytes.Buffer

	err := run(context.Background(), []string{
		"principal", "create",
		"--email", "Grace@Example.com",
		"--name", "Grace",
		"--password", "correct horse battery",
		"--role", "handler",
	}, &out, &errOut)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "created handler grace@example.com"))
}

func TestPrincipalCreateRejectsUnknownRole(t *testing.T) {
	memoryEnv(t)
	var out, errOut bytes.Buffer

	err := run(context.Background(), []string{
		"principal", "create", "--email", "x@example.com", "--password", "long enough", "--role", "owner",
	}, &out, &errOut)

	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestMigrateRequiresPostgres(t *testing.T) {
	memoryEnv(t)
	var out, errOut bytes.Buffer

	err := run(context.Background(), []string{"migrate"}, &out, &errOut)

	assert.EqualError(t, err, "migrate requires STORE_DRIVER=postgres")
}

func TestRequestAssignValidatesFlags(t *testing.T) {
	memoryEnv(t)
	var out, errOut bytes.Buffer

	err := run(context.Background(), []string{
		"request", "assign", "--as", "admin@example.com", "--request", "not-a-uuid", "--to", "h@example.com",
	}, &out, &errOut)

	assert.Error(t, err)
}
