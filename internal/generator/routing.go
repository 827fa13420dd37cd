package generator

import (
	"fmt"

	"github.com/contentdeck/aigen/internal/models"
	"github.com/contentdeck/aigen/internal/provider"
)

// routingTable fixes which provider serves each generation operation.
// Translation and sentiment analysis are declared request types with no route.
var routingTable = map[models.RequestType]provider.Name{
	models.RequestTypeCaption:     provider.OpenAIName,
	models.RequestTypeHashtag:     provider.OpenAIName,
	models.RequestTypeImage:       provider.OpenAIName,
	models.RequestTypeContent:     provider.AnthropicName,
	models.RequestTypeImprovement: provider.AnthropicName,
}

// operationLabels are the human names used in failure messages
var operationLabels = map[models.RequestType]string{
	models.RequestTypeCaption:     "Caption",
	models.RequestTypeContent:     "Content",
	models.RequestTypeImage:       "Image",
	models.RequestTypeHashtag:     "Hashtag",
	models.RequestTypeImprovement: "Content improvement",
	models.RequestTypeTranslation: "Translation",
	models.RequestTypeSentiment:   "Sentiment analysis",
}

// Route returns the provider that serves a request type
func Route(t models.RequestType) (provider.Name, error) {
	name, ok := routingTable[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return name, nil
}

func operationLabel(t models.RequestType) string {
	if label, ok := operationLabels[t]; ok {
		return label
	}
	return string(t)
}
