package llm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

func TestBuildClaudeMessages(t *testing.T) {
	req := models.GenerateRequest{
		Parts: []models.Part{
			models.SystemPart("Be brief."),
			models.TextPart("What is in the picture?"),
			models.ImagePart(&models.Image{Data: []byte("jpegdata"), MIMEType: "image/jpeg"}),
		},
		History: []models.Turn{
			{Role: models.RoleUser, Text: "Hi"},
			{Role: models.RoleModel, Text: "Hello"},
		},
	}

	messages, system, err := buildClaudeMessages(req)
	require.NoError(t, err)

	assert.Equal(t, "Be brief.", system)
	require.Len(t, messages, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, messages[1].Role)

	last := messages[2]
	assert.Equal(t, anthropic.MessageParamRoleUser, last.Role)
	require.Len(t, last.Content, 2)
	require.NotNil(t, last.Content[0].OfText)
	assert.Equal(t, "What is in the picture?", last.Content[0].OfText.Text)
	assert.NotNil(t, last.Content[1].OfImage)
}

func TestBuildClaudeMessages_NoUserContent(t *testing.T) {
	_, _, err := buildClaudeMessages(models.GenerateRequest{
		Parts: []models.Part{models.SystemPart("system only")},
	})
	assert.ErrorIs(t, err, interfaces.ErrMissingField)
}
