package analysis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pepschool/asset-insight-api/internal/models"
)

// SkillTag marks a skill as foundational or higher-order for the inverted
// skill pattern. The mapping is external configuration; untagged skills fail
// closed, never a guess.
type SkillTag string

const (
	TagBasic    SkillTag = "basic"
	TagAdvanced SkillTag = "advanced"
)

// SkillTagMap resolves (subject, normalized skill name) to a tag. The key
// includes the subject because the same skill name can appear in different
// subjects with a different meaning.
type SkillTagMap map[string]SkillTag

// Lookup returns the tag for a subject/skill pair and whether one exists.
func (m SkillTagMap) Lookup(subject, skillName string) (SkillTag, bool) {
	tag, ok := m[subject+"|"+models.NormalizeSkillName(skillName)]
	return tag, ok
}

type skillTagFile struct {
	Subjects map[string]map[string]string `yaml:"subjects"`
}

// LoadSkillTags reads the YAML tag mapping:
//
//	subjects:
//	  English:
//	    fact recall: basic
//	    character analysis: advanced
//
// Unknown tag values are a configuration error.
func LoadSkillTags(path string) (SkillTagMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill tag file: %w", err)
	}
	var file skillTagFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse skill tag file: %w", err)
	}

	tags := SkillTagMap{}
	for subject, skills := range file.Subjects {
		subject = models.NormalizeSubject(subject)
		for skill, tag := range skills {
			switch SkillTag(tag) {
			case TagBasic, TagAdvanced:
				tags[subject+"|"+models.NormalizeSkillName(skill)] = SkillTag(tag)
			default:
				return nil, fmt.Errorf("skill tag %q for %s/%s: must be %q or %q", tag, subject, skill, TagBasic, TagAdvanced)
			}
		}
	}
	return tags, nil
}
