package parser

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catawiki-seller-parser/internal/models"
)

var errInvalidUTF8 = errors.New("document is not valid UTF-8")

// CatawikiParser extracts seller profiles from saved Catawiki profile pages.
// It holds no mutable state and may be shared between goroutines.
type CatawikiParser struct {
	nameSelector        string
	locationSelector    string
	objectsSoldSelector string
	reviewsCellSelector string
	statValueSelector   string
	scoreCellSelector   string
	scoreValueSelector  string
	storySelector       string
	reviewListSelector  string
	authorSelector      string
	typeSelector        string
	bodySelector        string
	dateSiblingTag      string
	dateAttr            string
	typeAttr            string
}

func NewCatawikiParser() *CatawikiParser {
	return &CatawikiParser{
		nameSelector:        "h1",
		locationSelector:    `span[class*="SellerLocation_country"]`,
		objectsSoldSelector: `div[data-sentry-component="ObjectsSoldCell"]`,
		reviewsCellSelector: `div[data-sentry-component="ReviewsCell"]`,
		statValueSelector:   `div[class*="u-typography-body-s"]`,
		scoreCellSelector:   `div[data-sentry-component="ScoreCell"]`,
		scoreValueSelector:  "span",
		storySelector:       `div[class*="SellerStory_story"]`,
		reviewListSelector:  `ul[class*="FeedbackCommentList_review-list"]`,
		authorSelector:      `div[data-testid="feedback-comment-author"]`,
		typeSelector:        `div[data-testid="feedback-comment-type"]`,
		bodySelector:        `p[data-testid="feedback-comment-body"]`,
		dateSiblingTag:      "div",
		dateAttr:            "title",
		typeAttr:            "title",
	}
}

// ParseProfileBytes decodes data as UTF-8 and extracts the profile.
func (p *CatawikiParser) ParseProfileBytes(data []byte) (*models.SellerProfile, error) {
	if !utf8.Valid(data) {
		return nil, &ParseError{Err: errInvalidUTF8}
	}
	return p.ParseProfilePage(string(data))
}

func (p *CatawikiParser) ParseProfilePage(html string) (*models.SellerProfile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	profile := models.NewSellerProfile()

	profile.Name = firstText(doc.Selection, p.nameSelector)
	profile.Location = firstText(doc.Selection, p.locationSelector)
	profile.ObjectsSold = p.extractStat(doc, p.objectsSoldSelector, p.statValueSelector)
	profile.ReviewsCount = p.extractStat(doc, p.reviewsCellSelector, p.statValueSelector)
	profile.Score = p.extractStat(doc, p.scoreCellSelector, p.scoreValueSelector)
	profile.Story = p.extractStory(doc)
	profile.Reviews = p.extractReviews(doc)

	return profile, nil
}

func (p *CatawikiParser) extractStat(doc *goquery.Document, cellSelector, valueSelector string) *string {
	cell := doc.Find(cellSelector).First()
	if cell.Length() == 0 {
		return nil
	}
	return firstText(cell, valueSelector)
}

func (p *CatawikiParser) extractStory(doc *goquery.Document) *string {
	story := doc.Find(p.storySelector).First()
	if story.Length() == 0 {
		return nil
	}
	text := joinTextNodes(story.Get(0), "\n")
	return &text
}

func (p *CatawikiParser) extractReviews(doc *goquery.Document) []models.Review {
	reviews := make([]models.Review, 0)

	list := doc.Find(p.reviewListSelector).First()
	if list.Length() == 0 {
		return reviews
	}

	list.ChildrenFiltered("li").Each(func(i int, item *goquery.Selection) {
		article := item.Find("article").First()
		if article.Length() == 0 {
			return
		}
		reviews = append(reviews, p.extractReview(article))
	})

	return reviews
}

func (p *CatawikiParser) extractReview(article *goquery.Selection) models.Review {
	var review models.Review

	review.Author = firstText(article, p.authorSelector)
	review.Body = firstText(article, p.bodySelector)

	typeNode := article.Find(p.typeSelector).First()
	if typeNode.Length() == 0 {
		return review
	}

	// Empty and missing type attributes both fall back to the visible text.
	if title, ok := typeNode.Attr(p.typeAttr); ok && strings.TrimSpace(title) != "" {
		review.Type = models.StringPtr(strings.TrimSpace(title))
	} else {
		review.Type = models.StringPtr(strings.TrimSpace(typeNode.Text()))
	}

	if sibling := findSiblingWithAttr(typeNode.Get(0), p.dateSiblingTag, p.dateAttr); sibling != nil {
		iso, _ := attrValue(sibling, p.dateAttr)
		text := stripSeparators(strings.TrimSpace(nodeText(sibling)))
		review.DateISO = &iso
		review.DateText = &text
	}

	return review
}

func firstText(s *goquery.Selection, selector string) *string {
	found := s.Find(selector).First()
	if found.Length() == 0 {
		return nil
	}
	text := strings.TrimSpace(found.Text())
	return &text
}
