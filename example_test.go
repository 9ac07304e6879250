package xltmpl_test

import (
	"bytes"
	"fmt"

	"github.com/javajack/xltmpl"
	"github.com/xuri/excelize/v2"
)

func ExampleFillReader() {
	// A template is an ordinary workbook; the tags live in cell comments.
	tmpl := excelize.NewFile()
	sheet := "Sheet1"
	tmpl.SetCellValue(sheet, "A1", "${title}")
	tmpl.SetCellValue(sheet, "A2", "Name")
	tmpl.SetCellValue(sheet, "B2", "Department")
	tmpl.SetCellValue(sheet, "C2", "Salary")
	tmpl.SetCellValue(sheet, "A3", "${e.Name}")
	tmpl.SetCellValue(sheet, "B3", "${e.Department}")
	tmpl.SetCellValue(sheet, "C3", "${e.Salary}")
	tmpl.AddComment(sheet, excelize.Comment{Cell: "A1", Author: "xltmpl", Text: `jx:area(lastCell="C3")`})
	tmpl.AddComment(sheet, excelize.Comment{Cell: "A3", Author: "xltmpl", Text: `jx:each(items="employees" var="e" lastCell="C3")`})

	var in, out bytes.Buffer
	if err := tmpl.Write(&in); err != nil {
		fmt.Println(err)
		return
	}

	data := map[string]any{
		"title": "Employee Report",
		"employees": []map[string]any{
			{"Name": "Alice", "Department": "Engineering", "Salary": 95000},
			{"Name": "Bob", "Department": "Marketing", "Salary": 72000},
			{"Name": "Carol", "Department": "Engineering", "Salary": 105000},
		},
	}
	if err := xltmpl.FillReader(&in, &out, data); err != nil {
		fmt.Println(err)
		return
	}

	f, err := excelize.OpenReader(&out)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer f.Close()
	rows, _ := f.GetRows(sheet)
	for _, row := range rows {
		fmt.Println(row)
	}
	// Output:
	// [Employee Report]
	// [Name Department Salary]
	// [Alice Engineering 95000]
	// [Bob Marketing 72000]
	// [Carol Engineering 105000]
}
