package admin

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"aura-bot/internal/models"
	"aura-bot/internal/purchase"
)

const (
	sheetName = "Покупки"
	dateTime  = "02.01.2006 15:04"
)

var purchaseHeaders = []string{
	"ID", "Telegram ID", "Пользователь", "Уровень", "Статус", "Период", "Сумма", "Валюта",
	"Создана", "Оплачена", "Подписка до", "Telegram charge", "Provider charge",
}

func purchasesWorkbook(rows []models.Purchase) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	for i, header := range purchaseHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, p := range rows {
		values := []any{
			p.ID, "", "", "", string(p.Status), purchase.PeriodLabel(p.Month),
			p.Amount.InexactFloat64(), p.Currency, p.CreatedAt.Format(dateTime),
			optionalTime(p.PaidAt), optionalTime(p.SubscriptionUntil),
			p.TelegramChargeID, p.ProviderChargeID,
		}
		if p.User != nil {
			values[1] = p.User.TelegramID
			values[2] = p.User.DisplayName()
			values[3] = p.User.Level.Title()
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateTime)
}
