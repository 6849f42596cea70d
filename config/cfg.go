package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"msx/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	ContentConfig struct {
		NovelCover    bool `yaml:"novel_cover"`
		ChapterCover  bool `yaml:"chapter_cover"`
		Illustrations bool `yaml:"illustrations"`
	}

	FontsConfig struct {
		Dir       string   `yaml:"dir" sanitize:"path_clean"`
		ExtraDirs []string `yaml:"extra_dirs" validate:"dive,required"`
		Font      string   `yaml:"font"`
		All       bool     `yaml:"all"`
	}

	PDFConfig struct {
		Fonts      FontsConfig `yaml:"fonts"`
		FontSize   float64     `yaml:"font_size" validate:"gte=6,lte=48"`
		LineHeight float64     `yaml:"line_height" validate:"gtefield=FontSize"`
	}

	ImagesConfig struct {
		BaseDir     string `yaml:"base_dir" sanitize:"path_clean"`
		JPEGQuality int    `yaml:"jpeg_quality" validate:"min=40,max=100"`
	}

	ExportConfig struct {
		Format                common.OutputFmt `yaml:"format" validate:"gte=0,lte=3"`
		OutputNameTemplate    string           `yaml:"output_name_template"`
		FileNameTransliterate bool             `yaml:"file_name_transliterate"`
		Content               ContentConfig    `yaml:"content"`
		ExcludeIllustrations  []string         `yaml:"exclude_illustrations" validate:"dive,required"`
		PDF                   PDFConfig        `yaml:"pdf"`
		Images                ImagesConfig     `yaml:"images"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Export    ExportConfig   `yaml:"export"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

// FontDirs returns all configured font directories in search order.
func (c *FontsConfig) FontDirs() []string {
	dirs := make([]string, 0, len(c.ExtraDirs)+1)
	if len(c.Dir) > 0 {
		dirs = append(dirs, c.Dir)
	}
	return append(dirs, c.ExtraDirs...)
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
