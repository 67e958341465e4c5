package parser

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/maltedev/catawiki-seller-parser/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestParseProfilePageFullDocument(t *testing.T) {
	data, err := os.ReadFile("testdata/seller_profile.html")
	require.NoError(t, err)

	parser := NewCatawikiParser()
	profile, err := parser.ParseProfileBytes(data)
	require.NoError(t, err)

	expected := &models.SellerProfile{
		Name:         strPtr("Antiques & Curiosités"),
		Location:     strPtr("Belgique"),
		ObjectsSold:  strPtr("1.234"),
		ReviewsCount: strPtr("567"),
		Score:        strPtr("9.8"),
		Story:        strPtr("Family business since 1962.\nWe ship\nworldwide\nwith care."),
		Reviews: []models.Review{
			{
				Author:   strPtr("Marie L."),
				Type:     strPtr("Positive"),
				DateISO:  strPtr("2024-03-01T10:15:00Z"),
				DateText: strPtr("3 days ago"),
				Body:     strPtr("Très bel objet, emballage soigné."),
			},
			{
				Author: strPtr("Tom B."),
				Type:   strPtr("Neutral"),
				Body:   strPtr("Took a while to arrive."),
			},
		},
	}

	if diff := cmp.Diff(expected, profile); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestParseProfilePageMinimalScenario(t *testing.T) {
	html := `<html><body>
		<h1>Jane Doe</h1>
		<span class="SellerLocation_country__x1 u-typography-body-s">France</span>
		<div class="SellerStory_story__abc"><p>Hello</p><p>World</p></div>
		<ul class="FeedbackCommentList_review-list__q"></ul>
	</body></html>`

	profile, err := NewCatawikiParser().ParseProfilePage(html)
	require.NoError(t, err)

	data, err := json.Marshal(profile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Jane Doe","location":"France","story":"Hello\nWorld","reviews":[]}`, string(data))
	assert.Nil(t, profile.ObjectsSold)
	assert.Nil(t, profile.ReviewsCount)
	assert.Nil(t, profile.Score)
}

func TestParseProfilePageMissingLocation(t *testing.T) {
	html := `<h1>Seller</h1>
		<div data-sentry-component="ScoreCell"><span> 9.5 </span></div>
		<div class="SellerStory_story"><p>Story</p></div>`

	profile, err := NewCatawikiParser().ParseProfilePage(html)
	require.NoError(t, err)

	assert.Nil(t, profile.Location)
	assert.Equal(t, strPtr("Seller"), profile.Name)
	assert.Equal(t, strPtr("9.5"), profile.Score)
	assert.Equal(t, strPtr("Story"), profile.Story)
	assert.NotNil(t, profile.Reviews)
	assert.Empty(t, profile.Reviews)
}

func TestParseProfilePageEmptyDocument(t *testing.T) {
	profile, err := NewCatawikiParser().ParseProfilePage("")
	require.NoError(t, err)

	data, err := json.Marshal(profile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reviews":[]}`, string(data))
}

func TestParseProfilePageStats(t *testing.T) {
	tests := []struct {
		name         string
		html         string
		objectsSold  *string
		reviewsCount *string
		score        *string
	}{
		{
			name:        "cell without value element",
			html:        `<div data-sentry-component="ObjectsSoldCell"><div class="label">Objects sold</div></div>`,
			objectsSold: nil,
		},
		{
			name:         "class fragment matched inside a longer class list",
			html:         `<div data-sentry-component="ReviewsCell"><div class="a1 u-typography-body-s b2">42</div></div>`,
			reviewsCount: strPtr("42"),
		},
		{
			name:  "score takes the first span",
			html:  `<div data-sentry-component="ScoreCell"><div><span>8.1</span><span>ignored</span></div></div>`,
			score: strPtr("8.1"),
		},
		{
			name:  "empty score span is present but empty",
			html:  `<div data-sentry-component="ScoreCell"><span>  </span></div>`,
			score: strPtr(""),
		},
		{
			name:        "only the first cell is consulted",
			html:        `<div data-sentry-component="ObjectsSoldCell"></div><div data-sentry-component="ObjectsSoldCell"><div class="u-typography-body-s">7</div></div>`,
			objectsSold: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := NewCatawikiParser().ParseProfilePage(tt.html)
			require.NoError(t, err)

			assert.Equal(t, tt.objectsSold, profile.ObjectsSold)
			assert.Equal(t, tt.reviewsCount, profile.ReviewsCount)
			assert.Equal(t, tt.score, profile.Score)
		})
	}
}

func reviewList(items string) string {
	return `<ul class="FeedbackCommentList_review-list__abc">` + items + `</ul>`
}

func TestParseReviewsSkipsItemsWithoutArticle(t *testing.T) {
	html := reviewList(`
		<li><article><div data-testid="feedback-comment-author">first</div></article></li>
		<li><div data-testid="feedback-comment-author">no article</div></li>
		<li><article><div data-testid="feedback-comment-author">second</div></article></li>
		<li></li>
		<li><article><div data-testid="feedback-comment-author">third</div></article></li>`)

	profile, err := NewCatawikiParser().ParseProfilePage(html)
	require.NoError(t, err)

	require.Len(t, profile.Reviews, 3)
	assert.Equal(t, strPtr("first"), profile.Reviews[0].Author)
	assert.Equal(t, strPtr("second"), profile.Reviews[1].Author)
	assert.Equal(t, strPtr("third"), profile.Reviews[2].Author)
}

func TestParseReviewsOnlyDirectItems(t *testing.T) {
	html := reviewList(`
		<li>
			<article><div data-testid="feedback-comment-author">outer</div></article>
			<ul><li><article><div data-testid="feedback-comment-author">nested</div></article></li></ul>
		</li>`)

	profile, err := NewCatawikiParser().ParseProfilePage(html)
	require.NoError(t, err)

	require.Len(t, profile.Reviews, 1)
	assert.Equal(t, strPtr("outer"), profile.Reviews[0].Author)
}

func TestParseReviewFields(t *testing.T) {
	tests := []struct {
		name     string
		article  string
		expected models.Review
	}{
		{
			name: "type from title attribute",
			article: `<div data-testid="feedback-comment-type" title="Positive">ignored</div>
				<p data-testid="feedback-comment-body"> Great </p>`,
			expected: models.Review{Type: strPtr("Positive"), Body: strPtr("Great")},
		},
		{
			name:     "empty title falls back to text",
			article:  `<div data-testid="feedback-comment-type" title="">Negative</div>`,
			expected: models.Review{Type: strPtr("Negative")},
		},
		{
			name:     "missing title falls back to text",
			article:  `<div data-testid="feedback-comment-type"> Neutral </div>`,
			expected: models.Review{Type: strPtr("Neutral")},
		},
		{
			name: "date from first titled sibling",
			article: `<div>
				<div data-testid="feedback-comment-type" title="Positive"></div>
				<div>plain</div>
				<div title="2024-01-02T03:04:05Z"> • 3 days ago </div>
				<div title="2023-01-01T00:00:00Z">older</div>
			</div>`,
			expected: models.Review{
				Type:     strPtr("Positive"),
				DateISO:  strPtr("2024-01-02T03:04:05Z"),
				DateText: strPtr("3 days ago"),
			},
		},
		{
			name: "sibling before the type node is found too",
			article: `<div>
				<div title="2024-05-06">·6 May</div>
				<div data-testid="feedback-comment-type">Positive</div>
			</div>`,
			expected: models.Review{
				Type:     strPtr("Positive"),
				DateISO:  strPtr("2024-05-06"),
				DateText: strPtr("6 May"),
			},
		},
		{
			name: "date node nested deeper is not a sibling",
			article: `<div>
				<div data-testid="feedback-comment-type" title="Positive"></div>
				<div><div title="2024-01-02">yesterday</div></div>
			</div>`,
			expected: models.Review{Type: strPtr("Positive")},
		},
		{
			name: "non div sibling is ignored",
			article: `<div>
				<div data-testid="feedback-comment-type" title="Positive"></div>
				<span title="tooltip">hover</span>
			</div>`,
			expected: models.Review{Type: strPtr("Positive")},
		},
		{
			name: "no type node means no date",
			article: `<div>
				<div data-testid="feedback-comment-author">Ann</div>
				<div title="2024-01-02">yesterday</div>
			</div>`,
			expected: models.Review{Author: strPtr("Ann")},
		},
		{
			name:     "empty article",
			article:  ``,
			expected: models.Review{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := reviewList(`<li><article>` + tt.article + `</article></li>`)

			profile, err := NewCatawikiParser().ParseProfilePage(html)
			require.NoError(t, err)
			require.Len(t, profile.Reviews, 1)

			if diff := cmp.Diff(tt.expected, profile.Reviews[0]); diff != "" {
				t.Errorf("review mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseProfileBytesRejectsInvalidUTF8(t *testing.T) {
	_, err := NewCatawikiParser().ParseProfileBytes([]byte{'<', 'h', '1', '>', 0xff, 0xfe})
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.ErrorIs(t, err, errInvalidUTF8)
}

func TestParseProfilePageDeterministic(t *testing.T) {
	data, err := os.ReadFile("testdata/seller_profile.html")
	require.NoError(t, err)

	parser := NewCatawikiParser()
	first, err := parser.ParseProfileBytes(data)
	require.NoError(t, err)
	second, err := parser.ParseProfileBytes(data)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
