package service

import (
	"carmen/internal/dto"
	"carmen/internal/model"
)

func vendorToResponse(v *model.Vendor) dto.VendorResponse {
	cats := v.Categories
	if cats == nil {
		cats = []string{}
	}
	return dto.VendorResponse{
		ID:           v.ID,
		Name:         v.Name,
		Categories:   cats,
		Preferred:    v.Preferred,
		Rating:       v.Rating,
		LeadTimeDays: v.LeadTimeDays,
		Email:        v.Email,
		Active:       v.Active,
	}
}

func submissionToResponse(s *model.PriceSubmission) dto.PriceSubmissionResponse {
	resp := dto.PriceSubmissionResponse{
		ID:           s.ID.String(),
		VendorID:     s.VendorID,
		ProductID:    s.ProductID,
		Location:     s.Location,
		UnitPrice:    s.UnitPrice,
		Currency:     s.Currency,
		MinOrderQty:  s.MinOrderQty,
		AvailableQty: s.AvailableQty,
		LeadTimeDays: s.LeadTimeDays,
		SubmittedAt:  s.SubmittedAt,
		ValidFrom:    s.ValidFrom,
		ValidTo:      s.ValidTo,
	}
	if s.Vendor != nil {
		resp.VendorName = s.Vendor.Name
	}
	return resp
}

func rateToResponse(r *model.ExchangeRate) dto.ExchangeRateResponse {
	return dto.ExchangeRateResponse{
		ID:            r.ID.String(),
		BaseCurrency:  r.BaseCurrency,
		QuoteCurrency: r.QuoteCurrency,
		Rate:          r.Rate,
		EffectiveAt:   r.EffectiveAt,
		Source:        r.Source,
	}
}

func ruleToResponse(r *model.BusinessRule) dto.RuleResponse {
	conds := r.Conditions
	if conds == nil {
		conds = []model.RuleCondition{}
	}
	return dto.RuleResponse{
		ID:            r.ID.String(),
		Name:          r.Name,
		Description:   r.Description,
		Priority:      r.Priority,
		Conditions:    conds,
		Actions:       r.Actions,
		IsActive:      r.Active,
		EffectiveFrom: r.EffectiveFrom,
		EffectiveTo:   r.EffectiveTo,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func assignmentToResponse(a *model.PriceAssignment) dto.PriceAssignmentResponse {
	alts := a.Alternatives
	if alts == nil {
		alts = []model.Alternative{}
	}
	resp := dto.PriceAssignmentResponse{
		ID:                 a.ID.String(),
		PRItemID:           a.PRItemID,
		ProductID:          a.ProductID,
		ProductName:        a.ProductName,
		CategoryID:         a.CategoryID,
		Quantity:           a.Quantity,
		Location:           a.Location,
		Department:         a.Department,
		RequestedDate:      a.RequestedDate,
		VendorID:           a.VendorID,
		VendorName:         a.VendorName,
		AssignedPrice:      a.AssignedPrice,
		Currency:           a.Currency,
		NormalizedPrice:    a.NormalizedPrice,
		ComparisonCurrency: a.ComparisonCurrency,
		ExchangeRate:       a.ExchangeRate,
		RateEpoch:          a.RateEpoch,
		Confidence:         a.Confidence,
		AssignmentReason:   a.Reason,
		RuleNotHonored:     a.RuleNotHonored,
		RequiresReview:     a.RequiresReview,
		ReviewMessage:      a.ReviewMessage,
		Alternatives:       alts,
		NoAlternatives:     a.NoAlternatives,
		RuleSetVersion:     a.RuleSetVersion,
		Current: dto.CurrentAssignment{
			VendorID:        a.CurrentVendorID,
			VendorName:      a.CurrentVendorName,
			Price:           a.CurrentPrice,
			Currency:        a.CurrentCurrency,
			NormalizedPrice: a.CurrentNormalizedPrice,
			Overridden:      a.Overridden,
			OverrideCount:   a.OverrideCount,
			Version:         a.Version,
		},
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.RuleID != nil {
		applied := &dto.AppliedRule{ID: a.RuleID.String()}
		if a.RuleName != nil {
			applied.Name = *a.RuleName
		}
		resp.RuleApplied = applied
	}
	if resp.Current.NormalizedPrice == nil && !a.Overridden {
		n := a.NormalizedPrice
		resp.Current.NormalizedPrice = &n
	}
	return resp
}

func historyToResponse(h *model.AssignmentHistory) dto.HistoryEntryResponse {
	return dto.HistoryEntryResponse{
		ID:              h.ID.String(),
		Sequence:        h.Seq,
		Action:          h.Action,
		VendorID:        h.VendorID,
		VendorName:      h.VendorName,
		Price:           h.Price,
		Currency:        h.Currency,
		NormalizedPrice: h.NormalizedPrice,
		Confidence:      h.Confidence,
		Reason:          h.Reason,
		Actor:           h.Actor,
		Timestamp:       h.CreatedAt,
	}
}
