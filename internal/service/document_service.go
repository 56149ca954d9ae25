package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nurpe/sid-bonds/internal/model"
)

type PDFGenerator interface {
	Generate(summary model.GuaranteeSummary) ([]byte, error)
}

type ExcelGenerator interface {
	Generate(register model.GuaranteeRegister) ([]byte, error)
}

type FileResult struct {
	FileName string
	Content  []byte
}

type DocumentService struct {
	bonds *GuaranteeService
	pdf   PDFGenerator
	excel ExcelGenerator
}

func NewDocumentService(bonds *GuaranteeService, pdf PDFGenerator, excel ExcelGenerator) *DocumentService {
	return &DocumentService{bonds: bonds, pdf: pdf, excel: excel}
}

func (s *DocumentService) SummaryPDF(ctx context.Context, id uuid.UUID) (*FileResult, error) {
	view, err := s.bonds.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	contracts, err := s.bonds.contracts.GetMany(ctx, view.ContractIDs)
	if err != nil {
		return nil, err
	}
	base, err := s.bonds.base.compute(ctx, view.Guarantee)
	if err != nil {
		return nil, err
	}

	content, err := s.pdf.Generate(model.GuaranteeSummary{
		Guarantee:   *view,
		Contracts:   contracts,
		Orders:      base.Orders,
		GeneratedAt: s.bonds.now(),
	})
	if err != nil {
		return nil, err
	}
	return &FileResult{
		FileName: fmt.Sprintf("guarantee-%s.pdf", sanitizeFileName(view.Name)),
		Content:  content,
	}, nil
}

func (s *DocumentService) ExportRegister(ctx context.Context, filter model.GuaranteeFilter) (*FileResult, error) {
	views, err := s.bonds.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.bonds.now()
	content, err := s.excel.Generate(model.GuaranteeRegister{
		Guarantees:  views,
		GeneratedAt: now,
	})
	if err != nil {
		return nil, err
	}
	return &FileResult{
		FileName: fmt.Sprintf("guarantees-%s.xlsx", now.Format("20060102")),
		Content:  content,
	}, nil
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
