// internal/workers/application/consolidate-documents/handler.go
package consolidatedocuments

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/common/normalize"
	"social-support-workers/internal/models"
)

const (
	TaskType = "consolidate-documents"
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// mergeState tracks the winning confidence of the single-valued sections.
type mergeState struct {
	record       *models.ConsolidatedRecord
	identityConf float64
	resumeConf   float64
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("consolidation input is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := seedFromForm(input.Form)
	state := &mergeState{record: &record, identityConf: -1, resumeConf: -1}

	docs := orderDocuments(input.Documents)
	keys := sourceKeys(docs)

	var (
		failures    []DocumentFailure
		weightedSum float64
		weightTotal float64
	)

	for i, doc := range docs {
		key := keys[i]
		ds := models.DataSource{
			DocumentID:   doc.DocumentID,
			DocumentType: doc.DocumentType,
			Confidence:   h.extractionConfidence(doc),
			Quality:      dataQuality(doc.FieldMap),
			Fields:       presentFields(doc.FieldMap),
		}

		applied, err := h.mergeDocument(state, key, doc, ds.Confidence)
		if err != nil {
			ds.Confidence = 0
			ds.Quality = models.QualityPoor
			ds.Error = err.Error()
			failures = append(failures, DocumentFailure{
				Source:       key,
				DocumentID:   doc.DocumentID,
				DocumentType: doc.DocumentType,
				Error:        err.Error(),
			})
			h.logger.Warn("document merge failed", map[string]interface{}{
				"applicationId": input.Form.ApplicationID,
				"documentId":    doc.DocumentID,
				"documentType":  doc.DocumentType,
				"error":         err.Error(),
			})
		}
		ds.Applied = applied
		record.DataSources[key] = ds

		w := h.config.weight(doc.DocumentType)
		weightedSum += ds.Confidence * w
		weightTotal += w
	}

	resolveConflicts(&record.FinancialInfo)

	if weightTotal > 0 {
		record.OverallConfidence = normalize.Round3(normalize.Clamp01(weightedSum / weightTotal))
	}

	h.logger.Info("documents consolidated", map[string]interface{}{
		"applicationId":     input.Form.ApplicationID,
		"documents":         len(docs),
		"failures":          len(failures),
		"overallConfidence": record.OverallConfidence,
	})

	return &Output{Record: record, Failures: failures}, nil
}

// FormOnlyRecord is the record used when consolidation itself fails.
func FormOnlyRecord(form models.ApplicantForm) models.ConsolidatedRecord {
	return seedFromForm(form)
}

func seedFromForm(form models.ApplicantForm) models.ConsolidatedRecord {
	record := models.ConsolidatedRecord{
		ApplicationID: form.ApplicationID,
		PersonalInfo:  models.FormPersonalInfo(form),
		FinancialInfo: models.FinancialInfo{
			EmploymentStatus: strings.TrimSpace(form.EmploymentStatus),
			FieldConfidence:  map[string]float64{},
			Sources:          map[string][]models.SourceValue{},
			InvalidValues:    map[string]string{},
		},
		EmploymentInfo: models.EmploymentInfo{
			Education: strings.TrimSpace(form.HighestQualification),
		},
		DataSources: map[string]models.DataSource{},
	}

	if form.MonthlyIncome != nil {
		// Declared income carries no document evidence; any gated document replaces it.
		v := *form.MonthlyIncome
		record.FinancialInfo.MonthlyIncome = &v
		record.FinancialInfo.FieldConfidence[models.FieldMonthlyIncome] = 0
	}
	if form.FamilySize != nil {
		v := *form.FamilySize
		record.FamilyInfo.FamilySize = &v
	}
	if form.Dependents != nil {
		v := *form.Dependents
		record.FamilyInfo.Dependents = &v
	}
	return record
}

// orderDocuments sorts into canonical type order, keeping supplied order within a type.
func orderDocuments(docs []models.DocumentExtraction) []models.DocumentExtraction {
	out := make([]models.DocumentExtraction, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DocumentType.Rank() < out[j].DocumentType.Rank()
	})
	return out
}

// sourceKeys names each document by its type, suffixing repeats: bank_statement, bank_statement_2.
func sourceKeys(docs []models.DocumentExtraction) []string {
	seen := map[string]int{}
	keys := make([]string, len(docs))
	for i, doc := range docs {
		base := string(doc.DocumentType)
		if base == "" {
			base = "unknown"
		}
		seen[base]++
		if n := seen[base]; n > 1 {
			keys[i] = fmt.Sprintf("%s_%d", base, n)
		} else {
			keys[i] = base
		}
	}
	return keys
}

func (h *Handler) extractionConfidence(doc models.DocumentExtraction) float64 {
	if len(doc.FieldMap) == 0 {
		return 0
	}
	required, ok := h.config.RequiredFields[doc.DocumentType]
	if !ok || len(required) == 0 {
		return h.config.UnknownTypeConfidence
	}
	present := 0
	for _, field := range required {
		if normalize.IsPresent(doc.FieldMap[field]) {
			present++
		}
	}
	return normalize.Round3(float64(present) / float64(len(required)))
}

func dataQuality(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return models.QualityPoor
	}
	nonEmpty := 0
	for _, v := range fields {
		if normalize.IsPresent(v) {
			nonEmpty++
		}
	}
	ratio := float64(nonEmpty) / float64(len(fields))
	switch {
	case ratio >= 0.8:
		return models.QualityExcellent
	case ratio >= 0.6:
		return models.QualityGood
	case ratio >= 0.4:
		return models.QualityFair
	default:
		return models.QualityPoor
	}
}

func presentFields(fields map[string]interface{}) []string {
	out := make([]string, 0, len(fields))
	for k, v := range fields {
		if normalize.IsPresent(v) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// mergeDocument applies one document's rule. Values are parsed before anything is written,
// so a failing document leaves the record untouched.
func (h *Handler) mergeDocument(state *mergeState, key string, doc models.DocumentExtraction, conf float64) (applied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			applied = false
			err = fmt.Errorf("merge panicked: %v", r)
		}
	}()

	switch {
	case doc.DocumentType == models.DocEmiratesID:
		if conf <= h.config.IdentityGate {
			return false, nil
		}
		return h.mergeIdentity(state, doc, conf)
	case doc.DocumentType.IsFinancial():
		if conf <= h.config.FinancialGate {
			return false, nil
		}
		return h.mergeFinancial(state, key, doc, conf)
	case doc.DocumentType == models.DocResume:
		if conf <= h.config.ResumeGate {
			return false, nil
		}
		return h.mergeResume(state, key, doc, conf)
	default:
		return false, nil
	}
}

func (h *Handler) mergeIdentity(state *mergeState, doc models.DocumentExtraction, conf float64) (bool, error) {
	idNumber, err := scalar(doc.FieldMap, "id_number")
	if err != nil {
		return false, err
	}
	fullName, err := scalar(doc.FieldMap, "name_english")
	if err != nil {
		return false, err
	}
	dob, err := scalar(doc.FieldMap, "date_of_birth")
	if err != nil {
		return false, err
	}
	nationality, err := scalar(doc.FieldMap, "nationality")
	if err != nil {
		return false, err
	}

	if conf <= state.identityConf {
		return false, nil
	}
	state.identityConf = conf

	p := &state.record.PersonalInfo
	if idNumber != "" {
		p.EmiratesID = idNumber
	}
	if parts := strings.Fields(fullName); len(parts) >= 2 {
		p.FirstName = parts[0]
		p.LastName = strings.Join(parts[1:], " ")
	}
	if dob != "" {
		p.DateOfBirth = dob
	}
	if nationality != "" {
		p.Nationality = nationality
	}
	return true, nil
}

type financialReading struct {
	field string
	value *float64
	raw   string
}

func (h *Handler) mergeFinancial(state *mergeState, key string, doc models.DocumentExtraction, conf float64) (bool, error) {
	var readings []financialReading
	for _, field := range models.FinancialFields {
		for _, alias := range h.config.FinancialAliases[field] {
			raw, ok := doc.FieldMap[alias]
			if !ok || !normalize.IsPresent(raw) {
				continue
			}
			text, err := scalar(doc.FieldMap, alias)
			if err != nil {
				return false, err
			}
			readings = append(readings, financialReading{field: field, value: normalize.FloatPtr(raw), raw: text})
			break
		}
	}

	fin := &state.record.FinancialInfo
	for _, r := range readings {
		if r.value == nil {
			if _, seen := fin.InvalidValues[r.field]; !seen {
				fin.InvalidValues[r.field] = r.raw
			}
			continue
		}
		fin.Sources[r.field] = append(fin.Sources[r.field], models.SourceValue{
			Source:     key,
			Value:      *r.value,
			Confidence: conf,
		})
		current, has := fin.FieldConfidence[r.field]
		if !has || conf > current {
			fin.Set(r.field, r.value)
			fin.FieldConfidence[r.field] = conf
		}
	}
	return len(readings) > 0, nil
}

func (h *Handler) mergeResume(state *mergeState, key string, doc models.DocumentExtraction, conf float64) (bool, error) {
	position, err := scalar(doc.FieldMap, "current_position")
	if err != nil {
		return false, err
	}

	expRaw := doc.FieldMap["total_experience_years"]
	if !normalize.IsPresent(expRaw) {
		expRaw = doc.FieldMap["experience_years"]
	}

	skillsRaw := doc.FieldMap["skills"]
	if _, isMap := skillsRaw.(map[string]interface{}); isMap {
		return false, fmt.Errorf("skills: unsupported value type %T", skillsRaw)
	}
	educationRaw := doc.FieldMap["education"]
	if _, isMap := educationRaw.(map[string]interface{}); isMap {
		return false, fmt.Errorf("education: unsupported value type %T", educationRaw)
	}

	if conf <= state.resumeConf {
		return false, nil
	}
	state.resumeConf = conf

	e := &state.record.EmploymentInfo
	e.Source = key
	if position != "" {
		e.CurrentPosition = position
	}
	if years := normalize.FloatPtr(expRaw); years != nil {
		e.ExperienceYears = years
	}
	if skills := normalize.StringSlice(skillsRaw); len(skills) > 0 {
		e.Skills = skills
	}
	if education := normalize.String(educationRaw); education != "" {
		e.Education = education
	}
	return true, nil
}

// resolveConflicts re-selects every multi-source field from the most confident reading,
// earliest reading on ties.
func resolveConflicts(fin *models.FinancialInfo) {
	for _, field := range models.FinancialFields {
		readings := fin.Sources[field]
		if len(readings) < 2 {
			continue
		}
		best := readings[0]
		for _, r := range readings[1:] {
			if r.Confidence > best.Confidence {
				best = r
			}
		}
		v := best.Value
		fin.Set(field, &v)
		fin.FieldConfidence[field] = best.Confidence
	}
}

// scalar reads a field as text, rejecting nested structures.
func scalar(fields map[string]interface{}, key string) (string, error) {
	switch v := fields[key].(type) {
	case map[string]interface{}, []interface{}:
		return "", fmt.Errorf("%s: unsupported value type %T", key, v)
	default:
		return normalize.String(v), nil
	}
}
