package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/LJTian/EdNewsHub/internal/aggregator"
	"github.com/LJTian/EdNewsHub/internal/collector"
	"gopkg.in/yaml.v3"
)

//go:embed default_content.yaml
var defaultContent []byte

// Content 是数据源与各类词表的配置，保持为数据而不是代码
type Content struct {
	Sources           []SourceConfig      `yaml:"sources"`
	LinkSelectors     []string            `yaml:"linkSelectors"`
	RelevanceKeywords []string            `yaml:"relevanceKeywords"`
	TagVocabulary     []string            `yaml:"tagVocabulary"`
	Universities      map[string][]string `yaml:"universities"`
	OfficialSources   []string            `yaml:"officialSources"`
	VisaKeywords      []string            `yaml:"visaKeywords"`
	GuideKeywords     []string            `yaml:"guideKeywords"`
}

type SourceConfig struct {
	Name      string          `yaml:"name"`
	BaseURL   string          `yaml:"baseUrl"`
	Category  string          `yaml:"category"`
	Selectors SelectorsConfig `yaml:"selectors"`
}

type SelectorsConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Content     string `yaml:"content"`
	Image       string `yaml:"image"`
	PublishedAt string `yaml:"publishedAt"`
}

// LoadContent 读取 path 指向的 YAML；path 为空时使用内置默认配置
func LoadContent(path string) (*Content, error) {
	data := defaultContent
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read content config: %w", err)
		}
		data = b
	}
	return ParseContent(data)
}

func ParseContent(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse content config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate 要求每个源都有名称、列表页地址以及标题与正文选择器，且名称不重复
func (c *Content) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("content config: no sources")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		switch {
		case strings.TrimSpace(s.Name) == "":
			return fmt.Errorf("content config: source #%d: name is required", i)
		case !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://"):
			return fmt.Errorf("content config: source %q: baseUrl must be an absolute http(s) url", s.Name)
		case s.Selectors.Title == "" || s.Selectors.Content == "":
			return fmt.Errorf("content config: source %q: title and content selectors are required", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("content config: duplicate source %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

func (c *Content) ContentSources() []collector.ContentSource {
	out := make([]collector.ContentSource, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, collector.ContentSource{
			Name:     s.Name,
			BaseURL:  s.BaseURL,
			Category: s.Category,
			Selectors: collector.SelectorSet{
				Title:       s.Selectors.Title,
				Description: s.Selectors.Description,
				Content:     s.Selectors.Content,
				Image:       s.Selectors.Image,
				PublishedAt: s.Selectors.PublishedAt,
			},
		})
	}
	return out
}

// QueryTables 大学简称统一转小写，别名同样转小写
func (c *Content) QueryTables() aggregator.Tables {
	unis := make(map[string][]string, len(c.Universities))
	for k, v := range c.Universities {
		syn := make([]string, 0, len(v))
		for _, s := range v {
			syn = append(syn, strings.ToLower(s))
		}
		unis[strings.ToLower(k)] = syn
	}
	return aggregator.Tables{
		Universities:    unis,
		OfficialSources: c.OfficialSources,
		VisaKeywords:    c.VisaKeywords,
		GuideKeywords:   c.GuideKeywords,
	}
}
